package rproc

import (
	"time"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/models"
)

// CoreOps is the target specific half of a Core.
type CoreOps interface {
	SetBootAddr(addr uint64) error
	// Start releases the core and may wait up to timeout for it to come up.
	Start(timeout time.Duration) error
	Stop() error
}

// Core loads ELF firmware segment by segment, and anything else as a flat
// binary that runs from where it sits.
type Core struct {
	CoreName string
	Mem      models.Memory
	Ops      CoreOps
	Timeout  time.Duration
	Config   *models.Config

	boot   uint64
	loaded bool
}

func (c *Core) Name() string { return c.CoreName }

func (c *Core) DaToVa(da, size uint64) (uint64, bool) {
	return DaToVa(c.Ops, da, size)
}

func (c *Core) Probe() error {
	if p, ok := c.Ops.(Prober); ok {
		return errors.Wrapf(p.Probe(), "%s: probe failed", c.CoreName)
	}
	return nil
}

// BootAddr is the address the core starts from after the last Load.
func (c *Core) BootAddr() (uint64, bool) {
	return c.boot, c.loaded
}

func (c *Core) Load(img loader.Image) error {
	c.loaded = false
	t := &coreTarget{c}
	if loader.MatchElf(img) {
		class, err := loader.Validate(img)
		if err != nil {
			return errors.Wrapf(err, "%s: invalid firmware %s", c.CoreName, img)
		}
		c.Config.Debugf("%s: loading %s %s", c.CoreName, class, img)
		if err := loader.LoadSegments(t, img); err != nil {
			return errors.Wrapf(err, "%s: load failed", c.CoreName)
		}
		c.boot = loader.BootAddr(img)
	} else {
		c.Config.Debugf("%s: loading raw %s", c.CoreName, img)
		if err := loader.LoadRaw(t, img, img.Addr); err != nil {
			return errors.Wrapf(err, "%s: load failed", c.CoreName)
		}
		c.boot = img.Addr
	}
	if err := c.Ops.SetBootAddr(c.boot); err != nil {
		return errors.Wrapf(err, "%s: setting boot vector %#x failed", c.CoreName, c.boot)
	}
	c.loaded = true
	return nil
}

func (c *Core) Start() error {
	if !c.loaded {
		return errors.Wrap(NotLoaded, c.CoreName)
	}
	c.Config.Debugf("%s: starting at %#x", c.CoreName, c.boot)
	return errors.Wrapf(c.Ops.Start(c.Timeout), "%s: start failed", c.CoreName)
}

func (c *Core) Stop() error {
	return errors.Wrapf(c.Ops.Stop(), "%s: stop failed", c.CoreName)
}

// Reset stops the core and forgets the loaded firmware.
func (c *Core) Reset() error {
	c.loaded = false
	if r, ok := c.Ops.(Resetter); ok {
		return errors.Wrapf(r.Reset(), "%s: reset failed", c.CoreName)
	}
	return c.Stop()
}

type coreTarget struct{ c *Core }

func (t *coreTarget) MemWrite(addr uint64, p []byte) error { return t.c.Mem.MemWrite(addr, p) }
func (t *coreTarget) FlushCache(addr, size uint64) error   { return t.c.Mem.FlushCache(addr, size) }
func (t *coreTarget) DaToVa(da, size uint64) (uint64, bool) {
	return t.c.DaToVa(da, size)
}

func (t *coreTarget) Debugf(format string, a ...interface{}) {
	t.c.Config.Debugf(format, a...)
}
