package loader

// BootAddr returns e_entry. It assumes the image was validated already.
func BootAddr(img Image) uint64 {
	if ResolveClass(img) == Class64 {
		if h, err := readHeader64(img.Data); err == nil {
			return h.Entry
		}
		return 0
	}
	if h, err := readHeader32(img.Data); err == nil {
		return uint64(h.Entry)
	}
	return 0
}

// Progs decodes the program header table of a validated image.
func Progs(img Image) ([]Prog, error) {
	if ResolveClass(img) == Class64 {
		h, err := readHeader64(img.Data)
		if err != nil {
			return nil, err
		}
		return readProgs64(img.Data, h)
	}
	h, err := readHeader32(img.Data)
	if err != nil {
		return nil, err
	}
	return readProgs32(img.Data, h)
}
