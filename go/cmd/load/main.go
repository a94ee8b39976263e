package load

import (
	"io/ioutil"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/cmd"
	"github.com/lunixbochs/rproc/go/models/cpu"
	"github.com/lunixbochs/rproc/go/soc"
)

type loadCmd struct {
	*cmd.RprocCmd
	addr    *uint64
	start   *bool
	emulate *bool
	dump    *string
}

func (l *loadCmd) Main(args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Errorf("bad remoteproc id %q", args[0])
	}
	data, err := ioutil.ReadFile(args[1])
	if err != nil {
		return errors.WithStack(err)
	}
	s, err := l.NewSim(soc.Options{Emulate: *l.emulate})
	if err != nil {
		return err
	}
	if err := s.MemWrite(*l.addr, data); err != nil {
		return errors.Wrapf(err, "staging %s at %#x", args[1], *l.addr)
	}
	if err := s.Rproc.Init(); err != nil {
		return err
	}
	if err := s.Rproc.Load(id, *l.addr, uint64(len(data))); err != nil {
		return err
	}
	if *l.start {
		if err := s.Rproc.Start(id); err != nil {
			return err
		}
	}
	l.Config.Println(s.Rproc.Describe(id))
	for _, r := range s.Runs {
		if r.Err != nil {
			l.Config.Printf("%s: %v\n", r.Core, r.Err)
		} else {
			l.Config.Printf("%s: stopped at %#x\n", r.Core, r.Result.PC)
		}
	}
	if *l.dump != "" {
		f, err := os.Create(*l.dump)
		if err != nil {
			return errors.WithStack(err)
		}
		defer f.Close()
		if err := cpu.WriteDump(f, s.Mem); err != nil {
			return err
		}
	}
	return nil
}

func Main(args []string) {
	c := cmd.NewRprocCmd("load")
	c.Usage = "<rproc id> <firmware>"
	c.NArgs = 2
	l := &loadCmd{RprocCmd: c}
	c.SetupFlags = func() error {
		l.addr = c.Flags.Uint64("addr", soc.DDR_BASE+0x1000000, "staging address in local memory")
		l.start = c.Flags.Bool("start", false, "start the core after loading")
		l.emulate = c.Flags.Bool("emulate", false, "run the firmware when the core starts")
		l.dump = c.Flags.String("dump", "", "write a memory dump as remote cores see it")
		return nil
	}
	c.Main = l.Main
	os.Exit(c.Run(args))
}

func init() { cmd.Register("load", "load firmware into one remote core", Main) }
