package cpu

import (
	"testing"
)

func TestPageFind(t *testing.T) {
	mem := Pages{
		&Page{Addr: 0x1000, Size: 0x1000},
		&Page{Addr: 0x2000, Size: 0x1000},
		&Page{Addr: 0x4000, Size: 0x2000, Desc: "tcm"},
		&Page{Addr: 0x6000, Size: 0x2000},
	}
	if mem.Find(0x1000) != mem[0] ||
		mem.Find(0x1001) != mem[0] ||
		mem.Find(0x1fff) != mem[0] ||
		mem.Find(0x5fff) != mem[2] {
		t.Error("Find() failed")
	}
	if mem.Find(0x3000) != nil ||
		mem.Find(0x1) != nil ||
		mem.Find(0x10000) != nil {
		t.Error("Find() negative failed")
	}
	if mem.FindDesc("tcm") != mem[2] || mem.FindDesc("ddr") != nil {
		t.Error("FindDesc() failed")
	}
}

func TestPageIntersect(t *testing.T) {
	p := &Page{Addr: 0x1100, Size: 0x100}
	tests := []struct {
		addr, size uint64
		ok         bool
		oaddr      uint64
		osize      uint64
	}{
		{0x1000, 0x100, false, 0, 0},
		{0x1000, 0x150, true, 0x1100, 0x50},
		{0x1100, 0x100, true, 0x1100, 0x100},
		{0x1150, 0x200, true, 0x1150, 0xb0},
		{0x1000, 0x1000, true, 0x1100, 0x100},
		{0x1200, 0x50, false, 0, 0},
	}
	for _, test := range tests {
		oaddr, osize, ok := p.Intersect(test.addr, test.size)
		if ok != test.ok {
			t.Errorf("Intersect(%#x, %#x) ok = %v", test.addr, test.size, ok)
			continue
		}
		if ok && (oaddr != test.oaddr || osize != test.osize) {
			t.Errorf("Intersect(%#x, %#x) = %#x, %#x", test.addr, test.size, oaddr, osize)
		}
	}
}

func TestPageSplit(t *testing.T) {
	data := make([]byte, 0x300)
	for i := range data {
		data[i] = byte(i >> 8)
	}
	p := &Page{Addr: 0x1000, Size: 0x300, Prot: PROT_READ, Data: data, Desc: "ram"}
	left, right := p.Split(0x1100, 0x100)
	if left == nil || left.Addr != 0x1000 || left.Size != 0x100 || left.Data[0] != 0 {
		t.Errorf("bad left split: %v", left)
	}
	if right == nil || right.Addr != 0x1200 || right.Size != 0x100 || right.Data[0] != 2 {
		t.Errorf("bad right split: %v", right)
	}
	if p.Addr != 0x1100 || p.Size != 0x100 || len(p.Data) != 0x100 || p.Data[0] != 1 {
		t.Errorf("bad middle: %v", p)
	}
	if left.Desc != "ram" || right.Prot != PROT_READ {
		t.Error("split lost page attributes")
	}
}

func TestPageString(t *testing.T) {
	p := &Page{Addr: 0x1000, Size: 0x1000, Prot: PROT_READ | PROT_EXEC, Desc: "atcm"}
	if s := p.String(); s != "0x1000-0x2000 r-x [atcm]" {
		t.Errorf("String() = %q", s)
	}
}
