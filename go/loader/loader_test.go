package loader

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/pkg/errors"
)

// header field offsets used to corrupt images
const (
	off32Entry = 24
	off32Phoff = 28
	off32Shoff = 32
	off32Phnum = 44
	off64Entry = 24
	off64Phoff = 32
	off64Shoff = 40
	off64Phnum = 56

	// ELF32 program header fields, relative to the entry
	off32PType   = 0
	off32POffset = 4
	off32PPaddr  = 12
	off32PFilesz = 16
	off32PMemsz  = 20
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 1)
	}
	return p
}

func build(t *testing.T, b *Builder) Image {
	p, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return Image{Addr: 0x80000000, Data: p}
}

func simple(t *testing.T, class Class) Image {
	return build(t, &Builder{
		Class:   class,
		Machine: elf.EM_ARM,
		Entry:   0x1000,
		Segments: []Segment{
			{Type: elf.PT_LOAD, Paddr: 0x1000, Data: pattern(0x40), Memsz: 0x80},
			{Type: elf.PT_NOTE, Paddr: 0x9000, Data: pattern(0x10)},
			{Type: elf.PT_LOAD, Paddr: 0x2000, Data: pattern(0x20)},
		},
	})
}

func put16(p []byte, off int, v uint16) { ByteOrder.PutUint16(p[off:], v) }
func put32(p []byte, off int, v uint32) { ByteOrder.PutUint32(p[off:], v) }
func put64(p []byte, off int, v uint64) { ByteOrder.PutUint64(p[off:], v) }

func TestValidate(t *testing.T) {
	for _, class := range []Class{Class32, Class64} {
		img := simple(t, class)
		orig := append([]byte(nil), img.Data...)
		got, err := Validate(img)
		if err != nil {
			t.Fatalf("%s: %v", class, err)
		}
		if got != class {
			t.Errorf("Validate() class = %s, want %s", got, class)
		}
		if !bytes.Equal(orig, img.Data) {
			t.Errorf("%s: validation modified the image", class)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	otherData := byte(elf.ELFDATA2MSB)
	if hostData() == elf.ELFDATA2MSB {
		otherData = byte(elf.ELFDATA2LSB)
	}
	tests := []struct {
		name  string
		class Class
		mod   func(p []byte)
		want  error
	}{
		{"magic", Class32, func(p []byte) { p[1] = 'X' }, NotAnElfImage},
		{"magic64", Class64, func(p []byte) { p[0] = 0 }, NotAnElfImage},
		{"class", Class32, func(p []byte) { p[elf.EI_CLASS] = 7 }, UnsupportedClass},
		{"endian32", Class32, func(p []byte) { p[elf.EI_DATA] = otherData }, UnsupportedEndianness},
		{"endian64", Class64, func(p []byte) { p[elf.EI_DATA] = otherData }, UnsupportedEndianness},
		{"shoff32", Class32, func(p []byte) { put32(p, off32Shoff, uint32(len(p))) }, ImageTooSmall},
		{"shoff64", Class64, func(p []byte) { put64(p, off64Shoff, uint64(len(p))-section64Size+1) }, ImageTooSmall},
		{"shoffWrap", Class64, func(p []byte) { put64(p, off64Shoff, ^uint64(0)) }, ImageTooSmall},
		{"phnum32", Class32, func(p []byte) { put16(p, off32Phnum, 0) }, NoLoadableSegments},
		{"phnum64", Class64, func(p []byte) { put16(p, off64Phnum, 0) }, NoLoadableSegments},
		{"phoff32", Class32, func(p []byte) { put32(p, off32Phoff, uint32(len(p))+1) }, ImageTooSmall},
		{"phoff64", Class64, func(p []byte) { put64(p, off64Phoff, uint64(len(p))+1) }, ImageTooSmall},
	}
	for _, test := range tests {
		img := simple(t, test.class)
		test.mod(img.Data)
		if _, err := Validate(img); !errors.Is(err, test.want) {
			t.Errorf("%s: Validate() = %v, want %v", test.name, err, test.want)
		}
	}
}

func TestValidateWrongWidth(t *testing.T) {
	if err := Validate32(simple(t, Class64)); !errors.Is(err, UnsupportedClass) {
		t.Errorf("Validate32(ELF64) = %v", err)
	}
	if err := Validate64(simple(t, Class32)); !errors.Is(err, UnsupportedClass) {
		t.Errorf("Validate64(ELF32) = %v", err)
	}
}

// A phnum of zero is reported as such, not as a short image.
func TestNoLoadableSegments(t *testing.T) {
	img := build(t, &Builder{Class: Class32})
	if _, err := Validate(img); !errors.Is(err, NoLoadableSegments) {
		t.Fatalf("Validate() = %v, want NoLoadableSegments", err)
	}
}

// The size check looks at e_shoff, not the program header table: an image
// whose program headers are intact is rejected when e_shoff points past it.
func TestSectionHeaderBoundsQuirk(t *testing.T) {
	img := simple(t, Class32)
	put32(img.Data, off32Shoff, uint32(len(img.Data))-section32Size)
	if _, err := Validate(img); err != nil {
		t.Fatalf("shoff at the last section header slot rejected: %v", err)
	}
	put32(img.Data, off32Shoff, uint32(len(img.Data))-section32Size+1)
	if _, err := Validate(img); !errors.Is(err, ImageTooSmall) {
		t.Fatalf("Validate() = %v, want ImageTooSmall", err)
	}
	if progs, err := Progs(img); err != nil || len(progs) != 3 {
		t.Fatalf("program headers unreadable: %v", err)
	}
}

func TestShortImages(t *testing.T) {
	tests := []struct {
		data []byte
		want error
	}{
		{nil, NotAnElfImage},
		{[]byte("\x7fEL"), NotAnElfImage},
		{[]byte("\x7fELF"), ImageTooSmall},
		{append([]byte("\x7fELF\x01"), hostDataByte(), 1, 0, 0, 0, 0, 0, 0, 0, 0, 0), ImageTooSmall},
	}
	for _, test := range tests {
		if _, err := Validate(Image{Data: test.data}); !errors.Is(err, test.want) {
			t.Errorf("Validate(%q) = %v, want %v", test.data, err, test.want)
		}
	}
}

func hostDataByte() byte { return byte(hostData()) }

func TestValidElfImage(t *testing.T) {
	if !ValidElfImage(simple(t, Class64)) {
		t.Error("valid ELF64 rejected")
	}
	img := simple(t, Class32)
	if !ValidElfImage(img) {
		t.Error("valid ELF32 rejected")
	}
	for _, typ := range []elf.Type{elf.ET_REL, elf.ET_DYN, elf.ET_CORE} {
		put16(img.Data, elf.EI_NIDENT, uint16(typ))
		if ValidElfImage(img) {
			t.Errorf("%s accepted", typ)
		}
	}
	put16(img.Data, elf.EI_NIDENT, uint16(elf.ET_EXEC))
	img.Data[elf.EI_CLASS] = 0
	if !ValidElfImage(img) {
		t.Error("guard should only look at the magic and e_type")
	}
	if ValidElfImage(Image{Data: img.Data[:elf.EI_NIDENT+1]}) {
		t.Error("image too short for e_type accepted")
	}
	if ValidElfImage(Image{Data: []byte("MZ\x90\x00")}) {
		t.Error("non-ELF accepted")
	}
}

func TestBootAddr(t *testing.T) {
	img32 := simple(t, Class32)
	if got := BootAddr(img32); got != 0x1000 {
		t.Errorf("ELF32 entry = %#x", got)
	}
	img64 := build(t, &Builder{
		Class:    Class64,
		Entry:    0x80000000_00001000,
		Segments: []Segment{{Type: elf.PT_LOAD, Paddr: 0x1000, Data: pattern(8)}},
	})
	if got := BootAddr(img64); got != 0x80000000_00001000 {
		t.Errorf("ELF64 entry = %#x", got)
	}
	put64(img64.Data, off64Entry, 0x42)
	if got := BootAddr(img64); got != 0x42 {
		t.Errorf("patched ELF64 entry = %#x", got)
	}
	put32(img32.Data, off32Entry, 0x43)
	if got := BootAddr(img32); got != 0x43 {
		t.Errorf("patched ELF32 entry = %#x", got)
	}
}

func TestResolveClass(t *testing.T) {
	if c := ResolveClass(simple(t, Class64)); c != Class64 {
		t.Errorf("ResolveClass(ELF64) = %s", c)
	}
	img := simple(t, Class64)
	img.Data[elf.EI_CLASS] = 9
	if c := ResolveClass(img); c != Class32 {
		t.Errorf("unknown class should dispatch to 32-bit, got %s", c)
	}
}
