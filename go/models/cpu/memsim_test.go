package cpu

import (
	"bytes"
	"testing"
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i>>8)
	}
	return p
}

// table of overlap tests for an 0x1100-0x1200 region
// {start, end, overlaps}
var overlapTable = [][]uint64{
	{0x1000, 0x1100, 0},
	{0x1000, 0x1050, 0},
	{0x1000, 0x1200, 1},
	{0x1000, 0x1250, 1},
	{0x1100, 0x1150, 1},
	{0x1100, 0x1200, 1},
	{0x1100, 0x1250, 1},
	{0x1150, 0x1200, 1},
	{0x1150, 0x1250, 1},
	{0x1200, 0x1250, 0},
}

func TestMemSimRemap(t *testing.T) {
	for _, v := range overlapTable {
		m := &MemSim{}
		m.Map(0x1100, 0x100, PROT_READ, "a", true)
		m.Map(v[0], v[1]-v[0], PROT_READ|PROT_WRITE, "b", true)
		var total uint64
		for _, p := range m.Mem {
			total += p.Size
		}
		want := uint64(0x100) + v[1] - v[0]
		if v[2] == 1 {
			lo, hi := v[0], v[1]
			if lo > 0x1100 {
				lo = 0x1100
			}
			if hi < 0x1200 {
				hi = 0x1200
			}
			want = hi - lo
		}
		if total != want {
			t.Errorf("remap %#x-%#x: mapped %#x bytes, want %#x\n%s", v[0], v[1], total, want, m.Mem)
		}
		for i := 1; i < len(m.Mem); i++ {
			if m.Mem[i-1].End() > m.Mem[i].Addr {
				t.Errorf("remap %#x-%#x: overlapping pages\n%s", v[0], v[1], m.Mem)
			}
		}
	}
}

func TestMemSimReadWrite(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x100, PROT_READ|PROT_WRITE, "", true)
	m.Map(0x1100, 0x100, PROT_READ, "", true)
	p := pattern(0x180)
	if err := m.Write(0x1000, p, 0); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(p))
	if err := m.Read(0x1000, out, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, p) {
		t.Error("read across page boundary mismatch")
	}
	if err := m.Write(0x1000, p, PROT_WRITE); err == nil {
		t.Error("write into read-only page succeeded")
	} else if me, ok := err.(*MemError); !ok || me.Enum != MEM_WRITE_PROT {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.Read(0x1180, make([]byte, 0x100), 0); err == nil {
		t.Error("read past mapped memory succeeded")
	} else if me, ok := err.(*MemError); !ok || me.Enum != MEM_READ_UNMAPPED {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMemSimMapKeep(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x100, PROT_ALL, "", true)
	if err := m.Write(0x1000, []byte("asdf"), 0); err != nil {
		t.Fatal(err)
	}
	m.Map(0x1000, 0x200, PROT_READ, "", false)
	out := make([]byte, 4)
	if err := m.Read(0x1000, out, 0); err != nil {
		t.Fatal(err)
	}
	if string(out) != "asdf" {
		t.Errorf("remap without zero lost data: %q", out)
	}
	m.Map(0x1000, 0x200, PROT_READ, "", true)
	m.Read(0x1000, out, 0)
	if !bytes.Equal(out, make([]byte, 4)) {
		t.Error("remap with zero kept data")
	}
}

func TestMemSimUnmap(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, PROT_ALL, "", true)
	m.Unmap(0x2000, 0x1000)
	if len(m.Mem) != 2 {
		t.Fatalf("unmap hole: %d pages\n%s", len(m.Mem), m.Mem)
	}
	if ok, _ := m.RangeValid(0x2000, 1, 0); ok {
		t.Error("hole is still mapped")
	}
	if ok, _ := m.RangeValid(0x1000, 0x1000, 0); !ok {
		t.Error("left side lost")
	}
	if ok, _ := m.RangeValid(0x3000, 0x1000, 0); !ok {
		t.Error("right side lost")
	}
}

func BenchmarkMemSimWrite(b *testing.B) {
	m := &MemSim{}
	m.Map(0x1000, 0x100000, 0, "", true)
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Write(0x1000+uint64(i*4)&0xfffff, p, 0)
	}
}
