package mkelf

import (
	"debug/elf"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/arch"
	"github.com/lunixbochs/rproc/go/cmd"
	"github.com/lunixbochs/rproc/go/loader"
)

type mkelf struct {
	*cmd.RprocCmd
	archName *string
	src      *string
	file     *string
	addr     *uint64
	memsz    *uint64
}

func (m *mkelf) Main(args []string) error {
	a, err := arch.GetArch(*m.archName)
	if err != nil {
		return err
	}
	src := *m.src
	if *m.file != "" {
		data, err := ioutil.ReadFile(*m.file)
		if err != nil {
			return errors.WithStack(err)
		}
		src = string(data)
	}
	if src == "" {
		return errors.New("nothing to assemble: use -e or -f")
	}
	code, err := a.Asm.Asm(src, *m.addr)
	if err != nil {
		return err
	}
	b := &loader.Builder{
		Class:   loader.Class32,
		Machine: elf.EM_ARM,
		Entry:   *m.addr,
		Segments: []loader.Segment{{
			Type:  elf.PT_LOAD,
			Paddr: *m.addr,
			Vaddr: *m.addr,
			Flags: elf.PF_R | elf.PF_X,
			Data:  code,
			Memsz: *m.memsz,
		}},
	}
	if a.Bits == 64 {
		b.Class, b.Machine = loader.Class64, elf.EM_AARCH64
	}
	if a.Name == "thumb" {
		b.Entry |= 1
	}
	img, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(args[0], img, 0644); err != nil {
		return errors.WithStack(err)
	}
	m.Config.Printf("%s: %d bytes of %s code at %#x, entry %#x\n", args[0], len(code), a.Name, *m.addr, b.Entry)
	return nil
}

func Main(args []string) {
	c := cmd.NewRprocCmd("mkelf")
	c.Usage = "<out.elf>"
	c.NArgs = 1
	m := &mkelf{RprocCmd: c}
	c.SetupFlags = func() error {
		m.archName = c.Flags.String("arch", "arm", "instruction set (arm, thumb, arm64)")
		m.src = c.Flags.String("e", "", "assembly source")
		m.file = c.Flags.String("f", "", "read assembly source from file")
		m.addr = c.Flags.Uint64("addr", 0, "load and entry address")
		m.memsz = c.Flags.Uint64("memsz", 0, "segment size in memory (0 for the code size)")
		return nil
	}
	c.Main = m.Main
	os.Exit(c.Run(args))
}

func init() { cmd.Register("mkelf", "assemble a test firmware ELF", Main) }
