package mock

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models/cpu"
)

type RegWrite struct {
	Addr uint64
	Val  uint32
}

// Platform records everything the loading core does. Memory is a cache
// model, so tests can check what remote cores would see.
type Platform struct {
	*cpu.Mem

	Regs      map[uint64]uint32
	RegWrites []RegWrite
	Jumps     []uint64
	Panics    []error
	Events    int
	// WaitForEvent returns false once Events reaches MaxEvents.
	MaxEvents int
	JumpErr   error
}

func NewPlatform() *Platform {
	return &Platform{
		Mem:       cpu.NewMem(binary.LittleEndian),
		Regs:      make(map[uint64]uint32),
		MaxEvents: 1,
	}
}

func (p *Platform) ReadReg(addr uint64) (uint32, error) {
	if v, ok := p.Regs[addr]; ok {
		return v, nil
	}
	return 0, errors.Errorf("read of unknown register %#x", addr)
}

func (p *Platform) WriteReg(addr uint64, val uint32) error {
	p.RegWrites = append(p.RegWrites, RegWrite{addr, val})
	p.Regs[addr] = val
	return nil
}

func (p *Platform) Jump(entry uint64) error {
	p.Jumps = append(p.Jumps, entry)
	return p.JumpErr
}

func (p *Platform) WaitForEvent() bool {
	p.Events++
	return p.Events < p.MaxEvents
}

func (p *Platform) Panic(err error) {
	p.Panics = append(p.Panics, err)
}

// Controller records system controller calls as "op id" strings. Fail maps
// such a string to the error the call returns.
type Controller struct {
	Calls []string
	Fail  map[string]error
}

func (c *Controller) call(op string, id interface{}) error {
	s := op
	if id != nil {
		s = fmt.Sprintf("%s %v", op, id)
	}
	c.Calls = append(c.Calls, s)
	if c.Fail != nil {
		return c.Fail[s]
	}
	return nil
}

func (c *Controller) GetDevice(id uint32) error         { return c.call("get_device", id) }
func (c *Controller) PutDevice(id uint32) error         { return c.call("put_device", id) }
func (c *Controller) ReleaseExclusiveDevices() error    { return c.call("release_exclusive_devices", nil) }
func (c *Controller) ProcRequest(id uint8) error        { return c.call("proc_request", id) }
func (c *Controller) ProcRelease(id uint8) error        { return c.call("proc_release", id) }
func (c *Controller) ProcShutdownNoWait(id uint8) error { return c.call("proc_shutdown_no_wait", id) }

func (c *Controller) ProcSetBootAddr(id uint8, addr uint64) error {
	return c.call("proc_set_boot_addr", fmt.Sprintf("%d %#x", id, addr))
}

// Locator hands out a fixed answer and records the variable names it was
// asked for.
type Locator struct {
	Size  int64
	Addr  uint64
	Err   error
	Calls [][2]string
}

func (l *Locator) Locate(nameVar, addrVar string) (int64, uint64, error) {
	l.Calls = append(l.Calls, [2]string{nameVar, addrVar})
	return l.Size, l.Addr, l.Err
}
