package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/firmware"
	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/soc"
)

var UnknownCommand = errors.New("unknown command")

// Shell runs U-Boot style commands against a simulated SoC.
type Shell struct {
	Sim *soc.Sim
	Loc *firmware.Locator
	Out io.Writer
	// Entry is where "boot" expects the next stage image.
	Entry uint64

	booted bool
}

type shellCmd struct {
	usage string
	run   func(s *Shell, args []string) error
}

var shellCmds map[string]shellCmd

func init() {
	shellCmds = map[string]shellCmd{
		"rproc":  {"rproc init | list | load <id> <addr> <size> | start <id> | stop <id> | reset <id>", (*Shell).rproc},
		"env":    {"env print [name] | env set <name> [value]", (*Shell).env},
		"fwload": {"fwload <name var> <addr var>", (*Shell).fwload},
		"md":     {"md <addr> [words]", (*Shell).md},
		"dcache": {"dcache flush <addr> <size>", (*Shell).dcache},
		"boot":   {"boot", (*Shell).boot},
		"help":   {"help", (*Shell).help},
	}
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 64)
	return n, errors.Wrapf(err, "bad hex value %q", s)
}

func (s *Shell) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.Out, format, a...)
}

// Exec runs one command line. Empty lines do nothing.
func (s *Shell) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	c, ok := shellCmds[args[0]]
	if !ok {
		return errors.Wrap(UnknownCommand, args[0])
	}
	if err := c.run(s, args[1:]); err != nil {
		if err == errUsage {
			return errors.Errorf("usage: %s", c.usage)
		}
		return err
	}
	return nil
}

var errUsage = errors.New("usage")

func (s *Shell) help(args []string) error {
	names := make([]string, 0, len(shellCmds))
	for name := range shellCmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.printf("%s\n", shellCmds[name].usage)
	}
	return nil
}

func (s *Shell) rproc(args []string) error {
	r := s.Sim.Rproc
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "init":
		if r.Initialized() {
			s.printf("Already initialized\n")
			return nil
		}
		return r.Init()
	case "list":
		for _, id := range r.IDs() {
			s.printf("%s\n", r.Describe(id))
		}
		return nil
	}
	if len(args) < 2 {
		return errUsage
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Errorf("bad remoteproc id %q", args[1])
	}
	switch args[0] {
	case "load":
		if len(args) != 4 {
			return errUsage
		}
		addr, err := parseHex(args[2])
		if err != nil {
			return err
		}
		size, err := parseHex(args[3])
		if err != nil {
			return err
		}
		return r.Load(id, addr, size)
	case "start":
		return r.Start(id)
	case "stop":
		return r.Stop(id)
	case "reset":
		return r.Reset(id)
	}
	return errUsage
}

func (s *Shell) env(args []string) error {
	env := s.Loc.Env
	switch {
	case len(args) == 1 && args[0] == "print":
		for _, name := range env.Names() {
			s.printf("%s=%s\n", name, env[name])
		}
	case len(args) == 2 && args[0] == "print":
		v, ok := env[args[1]]
		if !ok {
			return errors.Errorf("## Error: \"%s\" not defined", args[1])
		}
		s.printf("%s=%s\n", args[1], v)
	case len(args) >= 2 && args[0] == "set":
		env.Put(args[1], strings.Join(args[2:], " "))
	default:
		return errUsage
	}
	return nil
}

func (s *Shell) fwload(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	size, addr, err := s.Loc.Locate(args[0], args[1])
	if err != nil {
		return err
	}
	if size == 0 {
		s.printf("nothing loaded\n")
		return nil
	}
	s.printf("%d bytes read to %#x\n", size, addr)
	if loader.ValidElfImage(loader.Image{Addr: addr, Data: s.read(addr, uint64(size))}) {
		s.printf("ELF image\n")
	}
	return nil
}

func (s *Shell) read(addr, size uint64) []byte {
	p, _ := s.Sim.MemRead(addr, size)
	return p
}

// md prints 32-bit words from the loading core's view of memory.
func (s *Shell) md(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	addr, err := parseHex(args[0])
	if err != nil {
		return err
	}
	count := uint64(0x40)
	if len(args) == 2 {
		if count, err = parseHex(args[1]); err != nil {
			return err
		}
	}
	order := s.Sim.ByteOrder()
	for i := uint64(0); i < count; i += 4 {
		n := count - i
		if n > 4 {
			n = 4
		}
		p, err := s.Sim.MemRead(addr+i*4, n*4)
		if err != nil {
			return err
		}
		s.printf("%08x:", addr+i*4)
		for j := uint64(0); j < n; j++ {
			s.printf(" %08x", order.Uint32(p[j*4:]))
		}
		s.printf("\n")
	}
	return nil
}

func (s *Shell) dcache(args []string) error {
	if len(args) != 3 || args[0] != "flush" {
		return errUsage
	}
	addr, err := parseHex(args[1])
	if err != nil {
		return err
	}
	size, err := parseHex(args[2])
	if err != nil {
		return err
	}
	return s.Sim.FlushCache(addr, size)
}

// boot runs the SPL flow once.
func (s *Shell) boot(args []string) error {
	if s.booted {
		return errors.New("already booted")
	}
	s.booted = true
	_, state, err := s.Sim.Boot(s.Loc, s.Entry)
	if err != nil {
		return err
	}
	s.printf("boot finished in %s\n", state)
	return nil
}
