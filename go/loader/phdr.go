package loader

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// LoadPhdrs places the PT_LOAD segments of an image the loading core runs
// itself, by p_paddr, and returns e_entry. Unlike LoadSegments there is no
// structural validation: segments that cannot be placed are skipped, and
// the first such failure is returned along with the entry point.
func LoadPhdrs(m Memory, img Image) (uint64, error) {
	var progs []Prog
	var entry uint64
	if ResolveClass(img) == Class64 {
		h, err := readHeader64(img.Data)
		if err != nil {
			return 0, err
		}
		entry = h.Entry
		progs, err = readProgs64(img.Data, h)
		if err != nil {
			return entry, err
		}
	} else {
		h, err := readHeader32(img.Data)
		if err != nil {
			return 0, err
		}
		entry = uint64(h.Entry)
		progs, err = readProgs32(img.Data, h)
		if err != nil {
			return entry, err
		}
	}
	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
	}
	size := img.Size()
	for i, p := range progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > size || p.Offset > size-p.Filesz {
			fail(errors.Wrapf(TruncatedFirmware, "phdr %d: need %#x avail %#x", i, p.Offset+p.Filesz, size))
			continue
		}
		memsz := p.Memsz
		if memsz < p.Filesz {
			memsz = p.Filesz
		}
		if err := copySegment(m, p.Paddr, img.Data[p.Offset:p.Offset+p.Filesz], memsz); err != nil {
			fail(errors.Wrapf(err, "phdr %d: write to %#x failed", i, p.Paddr))
			continue
		}
		if err := m.FlushCache(p.Paddr, memsz); err != nil {
			fail(errors.Wrapf(err, "phdr %d: cache flush at %#x failed", i, p.Paddr))
		}
	}
	return entry, first
}
