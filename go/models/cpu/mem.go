package cpu

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

type Range struct {
	Addr, Size uint64
}

// Mem models an address space shared between the loading core and other bus
// masters (remote cores, DMA). The loading core writes through a write-back
// data cache: its writes are invisible to everyone else until the covering
// lines are flushed. Regions mapped with MemMapIO bypass the cache.
type Mem struct {
	order binary.ByteOrder
	// what the loading core sees
	local MemSim
	// what remote cores see
	device MemSim

	io      Pages
	dirty   map[uint64]bool
	flushes []Range
}

func NewMem(order binary.ByteOrder) *Mem {
	return &Mem{order: order, dirty: make(map[uint64]bool)}
}

func (m *Mem) ByteOrder() binary.ByteOrder { return m.order }

func lineAligned(addr, size uint64) bool {
	return addr%CacheLine == 0 && size%CacheLine == 0
}

// MemMap maps cacheable memory. Regions are cache line aligned.
func (m *Mem) MemMap(addr, size uint64, prot int, desc string) error {
	if !lineAligned(addr, size) || size == 0 {
		return errors.Errorf("region %#x(%#x) is not cache line aligned", addr, size)
	}
	if addr+size < addr {
		return errors.Errorf("region %#x(%#x) wraps the address space", addr, size)
	}
	m.local.Map(addr, size, prot, desc, true)
	m.device.Map(addr, size, prot, desc, true)
	return nil
}

// MemMapIO maps a device register window; accesses are never cached.
func (m *Mem) MemMapIO(addr, size uint64, desc string) error {
	if err := m.MemMap(addr, size, PROT_READ|PROT_WRITE, desc); err != nil {
		return err
	}
	m.io = append(m.io, &Page{Addr: addr, Size: size, Desc: desc})
	sort.Sort(m.io)
	return nil
}

func (m *Mem) uncached(addr, size uint64) bool {
	for _, p := range m.io {
		if _, _, ok := p.Intersect(addr, size); ok {
			return true
		}
	}
	return false
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.local.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	if err := m.local.Write(addr, p, 0); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	if m.uncached(addr, uint64(len(p))) {
		return m.device.Write(addr, p, 0)
	}
	for line := addr &^ (CacheLine - 1); line < addr+uint64(len(p)); line += CacheLine {
		m.dirty[line] = true
	}
	return nil
}

// FlushCache cleans every dirty line overlapping addr:size so other masters
// observe the loading core's writes.
func (m *Mem) FlushCache(addr, size uint64) error {
	m.flushes = append(m.flushes, Range{addr, size})
	if size == 0 {
		return nil
	}
	buf := make([]byte, CacheLine)
	end := addr + size
	for line := addr &^ (CacheLine - 1); line < end; line += CacheLine {
		if !m.dirty[line] {
			continue
		}
		if err := m.local.Read(line, buf, 0); err != nil {
			return errors.Wrapf(err, "flush of line %#x", line)
		}
		if err := m.device.Write(line, buf, 0); err != nil {
			return errors.Wrapf(err, "flush of line %#x", line)
		}
		delete(m.dirty, line)
	}
	return nil
}

// Dirty reports whether any line in addr:size holds unflushed data.
func (m *Mem) Dirty(addr, size uint64) bool {
	for line := addr &^ (CacheLine - 1); line < addr+size; line += CacheLine {
		if m.dirty[line] {
			return true
		}
	}
	return false
}

func (m *Mem) Flushes() []Range {
	return append([]Range(nil), m.flushes...)
}

// DeviceRead reads memory the way a remote core would see it.
func (m *Mem) DeviceRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.device.Read(addr, p, 0); err != nil {
		return nil, err
	}
	return p, nil
}

// DeviceWrite is a write by another bus master. The loading core's view of
// the range is updated as if its lines had been invalidated.
func (m *Mem) DeviceWrite(addr uint64, p []byte) error {
	if err := m.device.Write(addr, p, 0); err != nil {
		return err
	}
	for line := addr &^ (CacheLine - 1); line < addr+uint64(len(p)); line += CacheLine {
		delete(m.dirty, line)
	}
	return m.local.Write(addr, p, 0)
}

// Regions lists the mapped regions as remote cores see them.
func (m *Mem) Regions() Pages {
	return m.device.Mem
}

func (m *Mem) ReadUint(addr uint64, size int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	p, err := m.MemRead(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size int, val uint64) error {
	var buf [8]byte
	p, err := PackUint(m.order, size, buf[:], val)
	if err != nil {
		return err
	}
	return m.MemWrite(addr, p)
}

func PackUint(order binary.ByteOrder, size int, buf []byte, n uint64) ([]byte, error) {
	if buf == nil {
		buf = make([]byte, size)
	} else if len(buf) < size {
		return nil, errors.Errorf("buffer too small (%d < %d)", len(buf), size)
	}
	switch size {
	case 8:
		order.PutUint64(buf, n)
	case 4:
		order.PutUint32(buf, uint32(n))
	case 2:
		order.PutUint16(buf, uint16(n))
	case 1:
		buf[0] = byte(n)
	default:
		return nil, errors.Errorf("unsupported uint size: %d", size)
	}
	return buf[:size], nil
}

func UnpackUint(order binary.ByteOrder, size int, buf []byte) (uint64, error) {
	if len(buf) < size {
		return 0, errors.Errorf("buffer too small (%d < %d)", len(buf), size)
	}
	switch size {
	case 8:
		return order.Uint64(buf), nil
	case 4:
		return uint64(order.Uint32(buf)), nil
	case 2:
		return uint64(order.Uint16(buf)), nil
	case 1:
		return uint64(buf[0]), nil
	default:
		return 0, errors.Errorf("unsupported uint size: %d", size)
	}
}
