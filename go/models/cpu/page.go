package cpu

import (
	"bytes"
	"fmt"
	"strings"
)

// Page is one mapped region of a simulated address space.
type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	// Desc names the memory behind the region, e.g. "MCU_R5FSS0_CORE0_ATCM"
	Desc string
}

func (p *Page) String() string {
	prots := []int{PROT_READ, PROT_WRITE, PROT_EXEC}
	chars := []string{"r", "w", "x"}
	prot := ""
	for i := range prots {
		if p.Prot&prots[i] != 0 {
			prot += chars[i]
		} else {
			prot += "-"
		}
	}
	desc := fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.End(), prot)
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) End() uint64 { return p.Addr + p.Size }

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.End()
}

// start = max(s1, s2), end = min(e1, e2), ok = end > start
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := p.Addr, p.End()
	if e2 := addr + size; end > e2 {
		end = e2
	}
	if start < addr {
		start = addr
	}
	return start, end - start, end > start
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size], Desc: p.Desc}
}

// Split trims p to addr:size and returns whatever was left on either side.
// Growing past the original bounds pads with zeroes.
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	if addr+size < p.End() {
		ra := addr + size
		right = p.slice(ra, p.End()-ra)
		p.Data = p.Data[:ra-p.Addr]
	}
	if addr > p.Addr {
		ls := addr - p.Addr
		left = p.slice(p.Addr, ls)
		p.Data = p.Data[ls:]
	}
	if addr < p.Addr {
		p.Data = append(bytes.Repeat([]byte{0}, int(p.Addr-addr)), p.Data...)
	}
	if end, nend := p.End(), addr+size; nend > end {
		p.Data = append(p.Data, bytes.Repeat([]byte{0}, int(nend-end))...)
	}
	p.Addr, p.Size = addr, size
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// index of the region containing addr, or -1
func (p Pages) bsearch(addr uint64) int {
	l, r := 0, len(p)-1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		if addr < e.Addr {
			r = mid - 1
		} else if addr >= e.End() {
			l = mid + 1
		} else {
			return mid
		}
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}

// FindDesc returns the first region with the given name.
func (p Pages) FindDesc(desc string) *Page {
	for _, v := range p {
		if v.Desc == desc {
			return v
		}
	}
	return nil
}
