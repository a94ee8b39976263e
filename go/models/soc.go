package models

// Memory is the loading core's view of memory. Writes are not visible to
// other cores until flushed.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, p []byte) error
	FlushCache(addr, size uint64) error
}

// Platform is the loading core and the SoC around it.
type Platform interface {
	Memory

	ReadReg(addr uint64) (uint32, error)
	WriteReg(addr uint64, val uint32) error

	// Jump transfers control to entry on the loading core. On hardware it
	// never returns.
	Jump(entry uint64) error
	// WaitForEvent executes one wfe. It returns false only when a simulated
	// platform is torn down, which ends the idle loop.
	WaitForEvent() bool
	// Panic reports an unrecoverable error and halts.
	Panic(err error)
}

// FirmwareLocator finds a firmware image by environment variable names and
// places it at its load address in local memory. A size <= 0 or a zero
// address means no image, which is not an error.
type FirmwareLocator interface {
	Locate(nameVar, addrVar string) (size int64, loadaddr uint64, err error)
}

// DeviceManager controls device power and ownership on the system
// controller.
type DeviceManager interface {
	GetDevice(id uint32) error
	PutDevice(id uint32) error
	ReleaseExclusiveDevices() error
}

// ProcManager controls processor ownership, boot vectors and shutdown on the
// system controller.
type ProcManager interface {
	ProcRequest(id uint8) error
	ProcRelease(id uint8) error
	ProcSetBootAddr(id uint8, addr uint64) error
	// ProcShutdownNoWait queues a core shutdown that takes effect once the
	// core executes wfe or wfi.
	ProcShutdownNoWait(id uint8) error
}

type SystemController interface {
	DeviceManager
	ProcManager
}
