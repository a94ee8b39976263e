package unicorn

import (
	"bytes"
	"time"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/models/cpu"
)

const pageSize = 0x1000

// DefaultLimit bounds runs that set neither Limit nor Timeout.
const DefaultLimit = 1 << 20

// Alias shows Size bytes of bus memory at PA to the core at DA, like an R5F
// TCM seen at 0.
type Alias struct {
	DA, PA, Size uint64
}

// Runner executes a remote core's firmware against the shared memory as the
// core sees it: flushed data only. What the core writes goes back as a bus
// master write.
type Runner struct {
	Builder models.CpuBuilder
	PC      int
	Mem     *cpu.Mem
	Aliases []Alias
	// Limit caps retired instructions per run; firmware usually ends in a
	// branch-to-self.
	Limit   uint64
	Timeout time.Duration
	Config  *models.Config
}

// Result is where a run stopped.
type Result struct {
	PC     uint64
	Faults []uint64
}

type mapping struct {
	base, size uint64
	// bus address the mapping mirrors
	pa   uint64
	orig []byte
}

func (r *Runner) mappings() []mapping {
	var maps []mapping
	for _, a := range r.Aliases {
		maps = append(maps, mapping{base: a.DA, size: a.Size, pa: a.PA})
	}
	for _, p := range r.Mem.Regions() {
		maps = append(maps, mapping{base: p.Addr, size: p.Size, pa: p.Addr})
	}
	return maps
}

// Run starts the core at entry and returns when it stops.
func (r *Runner) Run(entry uint64) (*Result, error) {
	c, err := r.Builder.New()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	u, ok := c.(*UnicornCpu)
	if !ok {
		return nil, errors.Errorf("emu: %T is not a unicorn backend", c)
	}

	var mapped []mapping
	for _, m := range r.mappings() {
		if m.base%pageSize != 0 || m.size%pageSize != 0 {
			r.Config.Debugf("emu: skipping unaligned region %#x(%#x)", m.base, m.size)
			continue
		}
		data, err := r.Mem.DeviceRead(m.pa, m.size)
		if err != nil {
			return nil, errors.Wrapf(err, "emu: region %#x", m.pa)
		}
		if err := u.MemMapProt(m.base, m.size, cpu.PROT_ALL); err != nil {
			// an alias already covers it
			r.Config.Debugf("emu: map %#x(%#x): %v", m.base, m.size, err)
			continue
		}
		if err := u.MemWrite(m.base, data); err != nil {
			return nil, errors.Wrapf(err, "emu: region %#x", m.base)
		}
		m.orig = data
		mapped = append(mapped, m)
	}

	res := &Result{}
	if err := u.OnFault(func(access int, addr uint64, size int) bool {
		res.Faults = append(res.Faults, addr)
		return false
	}); err != nil {
		return nil, err
	}
	limit := r.Limit
	if limit == 0 && r.Timeout == 0 {
		limit = DefaultLimit
	}
	r.Config.Debugf("emu: starting at %#x", entry)
	runErr := u.RunFor(entry, 0, limit, uint64(r.Timeout/time.Microsecond))
	res.PC, _ = u.RegRead(r.PC)
	for _, m := range mapped {
		if err := r.writeBack(u, m); err != nil {
			return res, err
		}
	}
	if runErr != nil {
		return res, errors.Wrapf(runErr, "emu: stopped at %#x", res.PC)
	}
	r.Config.Debugf("emu: stopped at %#x", res.PC)
	return res, nil
}

// writeBack publishes the cache lines the core changed.
func (r *Runner) writeBack(u *UnicornCpu, m mapping) error {
	data, err := u.MemRead(m.base, m.size)
	if err != nil {
		return errors.Wrapf(err, "emu: region %#x", m.base)
	}
	for off := uint64(0); off < m.size; off += cpu.CacheLine {
		line := data[off : off+cpu.CacheLine]
		if bytes.Equal(line, m.orig[off:off+cpu.CacheLine]) {
			continue
		}
		if err := r.Mem.DeviceWrite(m.pa+off, line); err != nil {
			return errors.Wrapf(err, "emu: write back %#x", m.pa+off)
		}
	}
	return nil
}
