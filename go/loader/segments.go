package loader

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// Memory is the loading core's view of memory.
type Memory interface {
	MemWrite(addr uint64, p []byte) error
	FlushCache(addr, size uint64) error
}

// Target is where segments land: local memory plus the device's address
// translation (identity unless the device says otherwise).
type Target interface {
	Memory
	DaToVa(da, size uint64) (uint64, bool)
}

type debugger interface {
	Debugf(format string, a ...interface{})
}

const zeroChunk = 64 * 1024

// LoadSegments copies every PT_LOAD segment of img into the target, in
// program header order. The first failing segment aborts the load; segments
// already written stay where they are.
func LoadSegments(t Target, img Image) error {
	if ResolveClass(img) == Class64 {
		return loadSegments64(t, img)
	}
	return loadSegments32(t, img)
}

func loadSegments32(t Target, img Image) error {
	debugf(t, "load_segments: addr = %#x size = %#x", img.Addr, img.Size())
	if err := Validate32(img); err != nil {
		return err
	}
	h, err := readHeader32(img.Data)
	if err != nil {
		return err
	}
	progs, err := readProgs32(img.Data, h)
	if err != nil {
		return err
	}
	return loadProgs(t, img, progs)
}

func loadSegments64(t Target, img Image) error {
	debugf(t, "load_segments: addr = %#x size = %#x", img.Addr, img.Size())
	if err := Validate64(img); err != nil {
		return err
	}
	h, err := readHeader64(img.Data)
	if err != nil {
		return err
	}
	progs, err := readProgs64(img.Data, h)
	if err != nil {
		return err
	}
	return loadProgs(t, img, progs)
}

func loadProgs(t Target, img Image, progs []Prog) error {
	size := img.Size()
	for i, p := range progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		debugf(t, "phdr %d: type %d da %#x memsz %#x filesz %#x", i, p.Type, p.Paddr, p.Memsz, p.Filesz)
		if p.Filesz > p.Memsz {
			return errors.Wrapf(BadSegmentSize, "phdr %d: filesz %#x memsz %#x", i, p.Filesz, p.Memsz)
		}
		if p.Filesz > size || p.Offset > size-p.Filesz {
			return errors.Wrapf(TruncatedFirmware, "phdr %d: need %#x avail %#x", i, p.Offset+p.Filesz, size)
		}
		va, ok := t.DaToVa(p.Paddr, p.Memsz)
		if !ok {
			return errors.Wrapf(BadDeviceAddress, "phdr %d: da %#x mem %#x", i, p.Paddr, p.Memsz)
		}
		if err := copySegment(t, va, img.Data[p.Offset:p.Offset+p.Filesz], p.Memsz); err != nil {
			return errors.Wrapf(err, "phdr %d: write to %#x failed", i, va)
		}
		// the bss tail has to be visible to the remote core too, so the
		// whole of memsz is flushed
		if err := t.FlushCache(va, p.Memsz); err != nil {
			return errors.Wrapf(err, "phdr %d: cache flush at %#x failed", i, va)
		}
	}
	return nil
}

func copySegment(m Memory, va uint64, data []byte, memsz uint64) error {
	if len(data) > 0 {
		if err := m.MemWrite(va, data); err != nil {
			return err
		}
	}
	return zeroFill(m, va+uint64(len(data)), memsz-uint64(len(data)))
}

func zeroFill(m Memory, addr, size uint64) error {
	if size == 0 {
		return nil
	}
	chunk := size
	if chunk > zeroChunk {
		chunk = zeroChunk
	}
	zero := make([]byte, chunk)
	for size > 0 {
		n := chunk
		if size < n {
			n = size
		}
		if err := m.MemWrite(addr, zero[:n]); err != nil {
			return err
		}
		addr, size = addr+n, size-n
	}
	return nil
}

func debugf(t Target, format string, a ...interface{}) {
	if d, ok := t.(debugger); ok {
		d.Debugf(format, a...)
	}
}
