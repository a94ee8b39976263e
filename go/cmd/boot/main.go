package boot

import (
	"bufio"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/cmd"
	"github.com/lunixbochs/rproc/go/firmware"
	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/soc"
)

type bootCmd struct {
	*cmd.RprocCmd
	env firmware.Env

	fwDir      *string
	ext4       *string
	ext4Offset *int64
	envFile    *string
	dev        *string
	entry      *uint64
	atf        *string
	emulate    *bool
	emuLimit   *uint64
}

// readEnv loads uEnv.txt style name=value lines. Flags given with -set win.
func (b *bootCmd) readEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.SplitN(line, "=", 2)[0]
		if _, set := b.env[name]; set {
			continue
		}
		if err := b.env.Set(line); err != nil {
			return errors.Wrap(err, path)
		}
	}
	return errors.WithStack(sc.Err())
}

func (b *bootCmd) source() (firmware.Source, func(), error) {
	switch {
	case *b.fwDir != "" && *b.ext4 != "":
		return nil, nil, errors.New("-fw and -ext4 are exclusive")
	case *b.fwDir != "":
		return &firmware.DirSource{Root: *b.fwDir}, func() {}, nil
	case *b.ext4 != "":
		src, err := firmware.OpenExt4(*b.ext4, *b.ext4Offset)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	}
	return nil, func() {}, nil
}

func (b *bootCmd) Main(args []string) error {
	if *b.envFile != "" {
		if err := b.readEnv(*b.envFile); err != nil {
			return err
		}
	}
	dev, err := models.ParseBootDevice(*b.dev)
	if err != nil {
		return err
	}
	src, done, err := b.source()
	if err != nil {
		return err
	}
	defer done()

	s, err := b.NewSim(soc.Options{Device: dev, Emulate: *b.emulate, EmuLimit: *b.emuLimit})
	if err != nil {
		return err
	}
	if *b.atf != "" {
		data, err := ioutil.ReadFile(*b.atf)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := s.MemWrite(*b.entry, data); err != nil {
			return errors.Wrapf(err, "staging %s at %#x", *b.atf, *b.entry)
		}
	}
	loc := firmware.NewLocator(b.env, src, s, b.Config)
	o, state, err := s.Boot(loc, *b.entry)
	if o != nil {
		trace := make([]string, 0, len(o.Trace()))
		for _, st := range o.Trace() {
			trace = append(trace, st.String())
		}
		b.Config.Debugf("states: %s", strings.Join(trace, " -> "))
	}
	for _, r := range s.Runs {
		if r.Err != nil {
			b.Config.Printf("%s: %v\n", r.Core, r.Err)
		} else {
			b.Config.Printf("%s: ran from %#x, stopped at %#x\n", r.Core, r.Entry, r.Result.PC)
		}
	}
	if err != nil {
		return err
	}
	b.Config.Printf("boot finished in %s\n", state)
	return nil
}

func Main(args []string) {
	c := cmd.NewRprocCmd("boot")
	c.NArgs = 0
	b := &bootCmd{RprocCmd: c, env: firmware.Env{}}
	c.SetupFlags = func() error {
		fs := c.Flags
		b.fwDir = fs.String("fw", "", "serve firmware files from this directory")
		b.ext4 = fs.String("ext4", "", "serve firmware files from this ext4 image")
		b.ext4Offset = fs.Int64("ext4-offset", 0, "byte offset of the filesystem in the -ext4 image")
		b.envFile = fs.String("env", "", "read environment variables from a uEnv.txt style file")
		fs.Var(b.env, "set", "set an environment variable (name=value, repeatable)")
		b.dev = fs.String("dev", models.BootDeviceMMC2.String(), "boot device latched in DEVSTAT")
		b.entry = fs.Uint64("entry", 0x70000000, "where the next stage image sits")
		b.atf = fs.String("atf", "", "next stage image to place at -entry")
		b.emulate = fs.Bool("emulate", false, "run firmware on the cores as they are started")
		b.emuLimit = fs.Uint64("emu-limit", 0, "instruction limit per emulated core (0 for default)")
		return nil
	}
	c.Main = b.Main
	os.Exit(c.Run(args))
}

func init() { cmd.Register("boot", "run the SPL remote core boot flow", Main) }
