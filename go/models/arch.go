package models

import (
	"fmt"
	"sort"
	"testing"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/rproc/go/models/cpu"
)

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val uint64
}

func (r RegVal) String() string {
	return fmt.Sprintf("%s=%#x", r.Name, r.Val)
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

type regMap map[string]int

func (r regMap) Items() regList {
	ret := make(regList, 0, len(r))
	for n, e := range r {
		ret = append(ret, Reg{e, n})
	}
	return ret
}

type CpuBuilder interface {
	New() (cpu.Cpu, error)
}

type Disassembler interface {
	Dis(mem []byte, addr uint64) ([]Ins, error)
}

type Assembler interface {
	Asm(asm string, addr uint64) ([]byte, error)
}

// Arch is an instruction set a remote core runs.
type Arch struct {
	Name string
	Bits int

	Cpu CpuBuilder
	Dis Disassembler
	Asm Assembler

	PC   int
	SP   int
	Regs regMap

	// sorted for RegDump
	regList regList
}

func (a *Arch) String() string {
	return fmt.Sprintf("<Arch %s>", a.Name)
}

// SmokeTest checks the emulator backend can round-trip the stack pointer.
func (a *Arch) SmokeTest(t *testing.T) {
	c, err := a.Cpu.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.RegWrite(a.SP, 0x1000); err != nil {
		t.Fatal(err)
	}
	val, err := c.RegRead(a.SP)
	if err != nil {
		t.Fatal(err)
	}
	if val != 0x1000 {
		t.Fatal(a.Name + " failed to read/write stack pointer")
	}
}

// RegDump reads every named register, in natural name order.
func (a *Arch) RegDump(c cpu.Cpu) ([]RegVal, error) {
	if a.regList == nil {
		rl := a.Regs.Items()
		sort.Sort(rl)
		a.regList = rl
	}
	ret := make([]RegVal, len(a.regList))
	for i, r := range a.regList {
		val, err := c.RegRead(r.Enum)
		if err != nil {
			return nil, err
		}
		ret[i] = RegVal{r, val}
	}
	return ret, nil
}

// TestExec assembles asm at 0x1000 and runs it to its end.
func (a *Arch) TestExec(t *testing.T, asm string) {
	code, err := a.Asm.Asm(asm, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Cpu.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.MemMapProt(0x1000, 0x1000, cpu.PROT_ALL); err != nil {
		t.Fatal(err)
	}
	if err := c.MemWrite(0x1000, code); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(0x1000, 0x1000+uint64(len(code))); err != nil {
		t.Fatal(err)
	}
	if _, err := a.RegDump(c); err != nil {
		t.Fatal(err)
	}
}

// Ins is one decoded instruction.
type Ins interface {
	Addr() uint64
	Bytes() []byte
	Mnemonic() string
	OpStr() string
}
