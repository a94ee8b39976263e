package cpu

import (
	"bytes"
	"sync"

	"github.com/lunixbochs/rproc/go/models"
)

const discacheSize = 1024

type discacheEntry struct {
	mem []byte
	dis []models.Ins
}

// discache remembers disassembly by address. An entry only hits while the
// bytes at that address are unchanged, so reloading a core's firmware
// invalidates it.
type discache struct {
	sync.Mutex
	cache map[uint64]*discacheEntry
	// insertion order, oldest first
	order []uint64
}

func newDiscache() *discache {
	return &discache{cache: make(map[uint64]*discacheEntry)}
}

func (d *discache) get(addr uint64, mem []byte) ([]models.Ins, bool) {
	d.Lock()
	defer d.Unlock()
	if ent, ok := d.cache[addr]; ok && bytes.Equal(mem, ent.mem) {
		return ent.dis, true
	}
	return nil, false
}

func (d *discache) put(addr uint64, mem []byte, dis []models.Ins) {
	d.Lock()
	defer d.Unlock()
	if _, ok := d.cache[addr]; !ok {
		if len(d.order) >= discacheSize {
			delete(d.cache, d.order[0])
			d.order = d.order[1:]
		}
		d.order = append(d.order, addr)
	}
	d.cache[addr] = &discacheEntry{mem: append([]byte(nil), mem...), dis: dis}
}
