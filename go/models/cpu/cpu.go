package cpu

// Cpu is the minimum a core emulator needs to run a loaded image. The
// register enums are the emulator's own.
type Cpu interface {
	MemMapProt(addr, size uint64, prot int) error
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, p []byte) error

	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// Start runs from begin until the pc reaches until or Stop is called.
	Start(begin, until uint64) error
	Stop() error

	Close() error
}
