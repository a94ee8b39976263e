package inspect

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/arch"
	"github.com/lunixbochs/rproc/go/cmd"
	"github.com/lunixbochs/rproc/go/cpu"
	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/models"
)

type inspector struct {
	*cmd.RprocCmd
	dis     *bool
	disLen  *uint64
	archArg *string
}

// entryCode returns the file bytes backing entry, if a PT_LOAD covers it.
func entryCode(img loader.Image, entry, max uint64) []byte {
	progs, err := loader.Progs(img)
	if err != nil {
		return nil
	}
	for _, p := range progs {
		if p.Filesz == 0 || entry < p.Paddr || entry >= p.Paddr+p.Filesz {
			continue
		}
		off := p.Offset + entry - p.Paddr
		end := p.Offset + p.Filesz
		if end > off+max {
			end = off + max
		}
		return img.Data[off:end]
	}
	return nil
}

func (i *inspector) disArch(class loader.Class, entry uint64) (*models.Arch, error) {
	name := *i.archArg
	if name == "" {
		name = "arm"
		if class == loader.Class64 {
			name = "arm64"
		} else if entry&1 != 0 {
			name = "thumb"
		}
	}
	return arch.GetArch(name)
}

func (i *inspector) Main(args []string) error {
	data, err := ioutil.ReadFile(args[0])
	if err != nil {
		return errors.WithStack(err)
	}
	img := loader.Image{Data: data}
	out := i.Config
	class, err := loader.Validate(img)
	if err != nil {
		out.Printf("%s: %v\n", args[0], err)
		return err
	}
	entry := loader.BootAddr(img)
	out.Printf("%s: %s, entry %#x\n", args[0], class, entry)
	progs, err := loader.Progs(img)
	if err != nil {
		return err
	}
	out.Printf("%-12s %-10s %-10s %-10s %-10s\n", "type", "paddr", "offset", "filesz", "memsz")
	for _, p := range progs {
		out.Printf("%-12s %#-10x %#-10x %#-10x %#-10x\n", p.Type, p.Paddr, p.Offset, p.Filesz, p.Memsz)
	}
	if !*i.dis {
		return nil
	}
	a, err := i.disArch(class, entry)
	if err != nil {
		return err
	}
	pc := entry
	if a.Name == "thumb" {
		pc &^= 1
	}
	code := entryCode(img, pc, *i.disLen)
	if code == nil {
		return errors.Errorf("entry %#x is not backed by file data", entry)
	}
	s, err := cpu.Disas(a.Dis, code, pc)
	if err != nil {
		return err
	}
	out.Println(s)
	return nil
}

func Main(args []string) {
	c := cmd.NewRprocCmd("inspect")
	c.Usage = "<firmware.elf>"
	c.NArgs = 1
	i := &inspector{RprocCmd: c}
	c.SetupFlags = func() error {
		i.dis = c.Flags.Bool("dis", false, "disassemble at the entry point")
		i.disLen = c.Flags.Uint64("n", 0x40, "bytes to disassemble")
		i.archArg = c.Flags.String("arch", "", "instruction set for -dis (default from the ELF class)")
		return nil
	}
	c.Main = i.Main
	os.Exit(c.Run(args))
}

func init() {
	cmd.Register("inspect", "validate a firmware image and list its segments", Main)
}
