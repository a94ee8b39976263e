package loader

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/pkg/errors"
)

var (
	NotAnElfImage         = errors.New("no elf image")
	UnsupportedClass      = errors.New("unsupported ELF class")
	UnsupportedEndianness = errors.New("unsupported firmware endianness")
	ImageTooSmall         = errors.New("image is too small")
	CorruptedImage        = errors.New("image is corrupted (bad magic)")
	NoLoadableSegments    = errors.New("no loadable segments")

	BadSegmentSize    = errors.New("bad phdr filesz/memsz")
	TruncatedFirmware = errors.New("truncated firmware")
	BadDeviceAddress  = errors.New("bad phdr device address")
)

// Image is a firmware image sitting in local memory. The loader never
// modifies Data.
type Image struct {
	Addr uint64
	Data []byte
}

func (i Image) Size() uint64 { return uint64(len(i.Data)) }

func (i Image) String() string {
	return fmt.Sprintf("image@%#x(%#x)", i.Addr, len(i.Data))
}

type Class int

const (
	ClassNone Class = iota
	Class32
	Class64
)

func (c Class) String() string {
	switch c {
	case Class32:
		return "ELF32"
	case Class64:
		return "ELF64"
	default:
		return "none"
	}
}

func (c Class) elfClass() elf.Class {
	if c == Class64 {
		return elf.ELFCLASS64
	}
	return elf.ELFCLASS32
}

// ResolveClass picks the header layout from e_ident[EI_CLASS]. Anything that
// is not ELFCLASS64 is treated as 32-bit, so the 32-bit checks reject it.
func ResolveClass(img Image) Class {
	if len(img.Data) > elf.EI_CLASS && elf.Class(img.Data[elf.EI_CLASS]) == elf.ELFCLASS64 {
		return Class64
	}
	return Class32
}

// MatchElf reports whether the image starts with the ELF magic.
func MatchElf(img Image) bool {
	return len(img.Data) >= len(elfMagic) && bytes.Equal(img.Data[:len(elfMagic)], elfMagic)
}

// ValidElfImage is the cheap guard used before executing a locally loaded
// image: the ELF magic and an ET_EXEC e_type. e_type sits at the same offset
// in both classes.
func ValidElfImage(img Image) bool {
	if !MatchElf(img) || len(img.Data) < elf.EI_NIDENT+2 {
		return false
	}
	return elf.Type(ByteOrder.Uint16(img.Data[elf.EI_NIDENT:])) == elf.ET_EXEC
}
