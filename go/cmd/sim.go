package cmd

import (
	"github.com/lunixbochs/rproc/go/soc"
)

// NewSim builds a simulated SoC from -profile.
func (c *RprocCmd) NewSim(opts soc.Options) (*soc.Sim, error) {
	prof, err := c.Profile()
	if err != nil {
		return nil, err
	}
	opts.Config = c.Config
	return soc.New(prof, opts)
}
