package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"unsafe"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// ByteOrder is the byte order of the core running the loader. Firmware is
// assumed to share it; there is no byte-swapping path.
var ByteOrder binary.ByteOrder = nativeOrder()

func nativeOrder() binary.ByteOrder {
	var x uint16 = 0x0102
	if *(*byte)(unsafe.Pointer(&x)) == 0x02 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func hostData() elf.Data {
	if ByteOrder == binary.BigEndian {
		return elf.ELFDATA2MSB
	}
	return elf.ELFDATA2LSB
}

var elfMagic = []byte(elf.ELFMAG)

type Header32 struct {
	Ident     [elf.EI_NIDENT]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Header64 struct {
	Ident     [elf.EI_NIDENT]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Prog32 struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type Prog64 struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// on-disk sizes, fixed by the ELF format
const (
	header32Size  = 52
	header64Size  = 64
	prog32Size    = 32
	prog64Size    = 56
	section32Size = 40
	section64Size = 64
)

// Prog is a class-independent view of one program header.
type Prog struct {
	Type                  elf.ProgType
	Paddr, Vaddr          uint64
	Offset, Filesz, Memsz uint64
}

func unpack(p []byte, i interface{}) error {
	return struc.UnpackWithOrder(bytes.NewReader(p), i, ByteOrder)
}

func readHeader32(p []byte) (*Header32, error) {
	if len(p) < header32Size {
		return nil, errors.Wrapf(ImageTooSmall, "%#x bytes cannot hold an ELF32 header", len(p))
	}
	var h Header32
	if err := unpack(p[:header32Size], &h); err != nil {
		return nil, errors.Wrap(err, "ELF32 header unpack failed")
	}
	return &h, nil
}

func readHeader64(p []byte) (*Header64, error) {
	if len(p) < header64Size {
		return nil, errors.Wrapf(ImageTooSmall, "%#x bytes cannot hold an ELF64 header", len(p))
	}
	var h Header64
	if err := unpack(p[:header64Size], &h); err != nil {
		return nil, errors.Wrap(err, "ELF64 header unpack failed")
	}
	return &h, nil
}

// program headers are strided by the structure size, not e_phentsize
func tableBounds(p []byte, off, count, size uint64) error {
	end := off + count*size
	if off > uint64(len(p)) || end > uint64(len(p)) || end < off {
		return errors.Wrapf(ImageTooSmall, "program header table %#x+%d*%d exceeds image size %#x", off, count, size, len(p))
	}
	return nil
}

func readProgs32(p []byte, h *Header32) ([]Prog, error) {
	off, count := uint64(h.Phoff), uint64(h.Phnum)
	if err := tableBounds(p, off, count, prog32Size); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	raw := make([]Prog32, count)
	if err := unpack(p[off:off+count*prog32Size], &raw); err != nil {
		return nil, errors.Wrap(err, "ELF32 program header unpack failed")
	}
	progs := make([]Prog, count)
	for i, v := range raw {
		progs[i] = Prog{
			Type:   elf.ProgType(v.Type),
			Paddr:  uint64(v.Paddr),
			Vaddr:  uint64(v.Vaddr),
			Offset: uint64(v.Offset),
			Filesz: uint64(v.Filesz),
			Memsz:  uint64(v.Memsz),
		}
	}
	return progs, nil
}

func readProgs64(p []byte, h *Header64) ([]Prog, error) {
	off, count := h.Phoff, uint64(h.Phnum)
	if err := tableBounds(p, off, count, prog64Size); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	raw := make([]Prog64, count)
	if err := unpack(p[off:off+count*prog64Size], &raw); err != nil {
		return nil, errors.Wrap(err, "ELF64 program header unpack failed")
	}
	progs := make([]Prog, count)
	for i, v := range raw {
		progs[i] = Prog{
			Type:   elf.ProgType(v.Type),
			Paddr:  v.Paddr,
			Vaddr:  v.Vaddr,
			Offset: v.Offset,
			Filesz: v.Filesz,
			Memsz:  v.Memsz,
		}
	}
	return progs, nil
}
