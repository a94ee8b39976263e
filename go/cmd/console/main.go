package console

import (
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/cmd"
	"github.com/lunixbochs/rproc/go/firmware"
	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/soc"
	"github.com/lunixbochs/rproc/go/ui"
)

func Main(args []string) {
	c := cmd.NewRprocCmd("console")
	c.NArgs = 0
	env := firmware.Env{}
	var fwDir, dev *string
	var emulate *bool
	c.SetupFlags = func() error {
		fwDir = c.Flags.String("fw", ".", "serve firmware files from this directory")
		dev = c.Flags.String("dev", models.BootDeviceMMC2.String(), "boot device latched in DEVSTAT")
		emulate = c.Flags.Bool("emulate", false, "run firmware on the cores as they are started")
		c.Flags.Var(env, "set", "set an environment variable (name=value, repeatable)")
		return nil
	}
	c.Main = func(args []string) error {
		bootDev, err := models.ParseBootDevice(*dev)
		if err != nil {
			return err
		}
		s, err := c.NewSim(soc.Options{Device: bootDev, Emulate: *emulate})
		if err != nil {
			return err
		}
		loc := firmware.NewLocator(env, &firmware.DirSource{Root: *fwDir}, s, c.Config)
		loc.InitEnv(bootDev)
		repl, err := ui.NewRepl(&ui.Shell{Sim: s, Loc: loc, Entry: 0x70000000})
		if err != nil {
			return errors.Wrap(err, "failed to start console")
		}
		repl.Run()
		return nil
	}
	os.Exit(c.Run(args))
}

func init() { cmd.Register("console", "interactive U-Boot style rproc console", Main) }
