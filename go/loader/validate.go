package loader

import (
	"bytes"
	"debug/elf"

	"github.com/pkg/errors"
)

// Validate runs the structural checks for the class the image declares.
func Validate(img Image) (Class, error) {
	class := ResolveClass(img)
	var err error
	if class == Class64 {
		err = Validate64(img)
	} else {
		err = Validate32(img)
	}
	if err != nil {
		return ClassNone, err
	}
	return class, nil
}

func Validate32(img Image) error {
	if err := checkIdent(img, Class32); err != nil {
		return err
	}
	h, err := readHeader32(img.Data)
	if err != nil {
		return err
	}
	return checkBounds(img, uint64(h.Shoff), section32Size, uint64(h.Phoff), h.Phnum)
}

func Validate64(img Image) error {
	if err := checkIdent(img, Class64); err != nil {
		return err
	}
	h, err := readHeader64(img.Data)
	if err != nil {
		return err
	}
	return checkBounds(img, h.Shoff, section64Size, h.Phoff, h.Phnum)
}

func checkIdent(img Image, want Class) error {
	if !MatchElf(img) {
		return errors.Wrapf(NotAnElfImage, "at address %#08x", img.Addr)
	}
	if len(img.Data) < elf.EI_NIDENT {
		return errors.Wrapf(ImageTooSmall, "%#x bytes cannot hold e_ident", len(img.Data))
	}
	if class := elf.Class(img.Data[elf.EI_CLASS]); class != want.elfClass() {
		return errors.Wrapf(UnsupportedClass, "%d", class)
	}
	if elf.Data(img.Data[elf.EI_DATA]) != hostData() {
		return errors.WithStack(UnsupportedEndianness)
	}
	return nil
}

// The size check is made against the section header table even though only
// program headers are consumed. Upstream does the same.
func checkBounds(img Image, shoff, shsize, phoff uint64, phnum uint16) error {
	size := img.Size()
	if shoff > size || size-shoff < shsize {
		return errors.Wrapf(ImageTooSmall, "size %#x < e_shoff %#x + %d", size, shoff, shsize)
	}
	if !bytes.Equal(img.Data[:len(elfMagic)], elfMagic) {
		return errors.WithStack(CorruptedImage)
	}
	if phnum == 0 {
		return errors.WithStack(NoLoadableSegments)
	}
	if phoff > size {
		return errors.Wrapf(ImageTooSmall, "e_phoff %#x beyond firmware size %#x", phoff, size)
	}
	return nil
}
