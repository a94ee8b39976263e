package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Segment describes one program header for Builder. Offset 0 places the data
// after the previous segment.
type Segment struct {
	Type   elf.ProgType
	Paddr  uint64
	Vaddr  uint64
	Offset uint64
	Memsz  uint64
	Flags  elf.ProgFlag
	Data   []byte
}

// Builder assembles minimal executable ELF images: a header, the program
// header table right after it, then segment data. No section headers.
type Builder struct {
	Class    Class
	Order    binary.ByteOrder
	Machine  elf.Machine
	Entry    uint64
	Segments []Segment
}

func (b *Builder) order() binary.ByteOrder {
	if b.Order == nil {
		return ByteOrder
	}
	return b.Order
}

func (b *Builder) ident() [elf.EI_NIDENT]byte {
	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elfMagic)
	ident[elf.EI_CLASS] = byte(b.Class.elfClass())
	if b.order() == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	} else {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	return ident
}

func (b *Builder) layout() (phoff uint64, offsets []uint64, total uint64) {
	hsize, psize := uint64(header32Size), uint64(prog32Size)
	if b.Class == Class64 {
		hsize, psize = header64Size, prog64Size
	}
	phoff = hsize
	next := phoff + psize*uint64(len(b.Segments))
	offsets = make([]uint64, len(b.Segments))
	total = next
	for i, s := range b.Segments {
		off := s.Offset
		if off == 0 {
			off = (next + 15) &^ 15
		}
		offsets[i] = off
		end := off + uint64(len(s.Data))
		if end > next {
			next = end
		}
		if end > total {
			total = end
		}
	}
	return phoff, offsets, total
}

// Bytes renders the image. Segment data is written first, so explicit
// offsets overlapping the headers are overwritten by them.
func (b *Builder) Bytes() ([]byte, error) {
	if b.Class != Class32 && b.Class != Class64 {
		return nil, errors.Errorf("cannot build class %s", b.Class)
	}
	phoff, offsets, total := b.layout()
	out := make([]byte, total)
	for i, s := range b.Segments {
		copy(out[offsets[i]:], s.Data)
	}
	var hdr bytes.Buffer
	opts := &struc.Options{Order: b.order()}
	if b.Class == Class64 {
		h := &Header64{
			Ident:     b.ident(),
			Type:      uint16(elf.ET_EXEC),
			Machine:   uint16(b.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     b.Entry,
			Phoff:     phoff,
			Ehsize:    header64Size,
			Phentsize: prog64Size,
			Phnum:     uint16(len(b.Segments)),
			Shentsize: section64Size,
		}
		if err := struc.PackWithOptions(&hdr, h, opts); err != nil {
			return nil, errors.Wrap(err, "ELF64 header pack failed")
		}
		for i, s := range b.Segments {
			p := &Prog64{
				Type:   uint32(s.Type),
				Flags:  uint32(s.Flags),
				Offset: offsets[i],
				Vaddr:  s.Vaddr,
				Paddr:  s.Paddr,
				Filesz: uint64(len(s.Data)),
				Memsz:  s.memsz(),
			}
			if err := struc.PackWithOptions(&hdr, p, opts); err != nil {
				return nil, errors.Wrap(err, "ELF64 program header pack failed")
			}
		}
	} else {
		h := &Header32{
			Ident:     b.ident(),
			Type:      uint16(elf.ET_EXEC),
			Machine:   uint16(b.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     uint32(b.Entry),
			Phoff:     uint32(phoff),
			Ehsize:    header32Size,
			Phentsize: prog32Size,
			Phnum:     uint16(len(b.Segments)),
			Shentsize: section32Size,
		}
		if err := struc.PackWithOptions(&hdr, h, opts); err != nil {
			return nil, errors.Wrap(err, "ELF32 header pack failed")
		}
		for i, s := range b.Segments {
			p := &Prog32{
				Type:   uint32(s.Type),
				Offset: uint32(offsets[i]),
				Vaddr:  uint32(s.Vaddr),
				Paddr:  uint32(s.Paddr),
				Filesz: uint32(len(s.Data)),
				Memsz:  uint32(s.memsz()),
				Flags:  uint32(s.Flags),
			}
			if err := struc.PackWithOptions(&hdr, p, opts); err != nil {
				return nil, errors.Wrap(err, "ELF32 program header pack failed")
			}
		}
	}
	copy(out, hdr.Bytes())
	return out, nil
}

func (s *Segment) memsz() uint64 {
	if s.Memsz < uint64(len(s.Data)) {
		return uint64(len(s.Data))
	}
	return s.Memsz
}
