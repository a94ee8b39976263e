package arm64

import (
	"testing"
)

var testAsm = `
mov x1, 100
l1:
subs x1, x1, 1
bge l1
`

func TestArm64(t *testing.T)     { Arch.SmokeTest(t) }
func TestArm64Exec(t *testing.T) { Arch.TestExec(t, testAsm) }

func TestArm64Dis(t *testing.T) {
	code, err := Arch.Asm.Asm("mov x1, #100; b #0x1000", 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	dis, err := Arch.Dis.Dis(code, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(dis) != 2 || dis[0].Mnemonic() != "mov" || dis[1].Addr() != 0x1004 {
		t.Errorf("unexpected disassembly of %x", code)
	}
}
