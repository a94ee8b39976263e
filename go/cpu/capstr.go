package cpu

import (
	"encoding/hex"
	"fmt"
	"strings"

	cs "github.com/lunixbochs/capstr"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

type Capstr struct {
	Arch, Mode int

	cs *cs.Engine
	dc *discache
}

func (c *Capstr) Open() error {
	engine, err := cs.New(c.Arch, c.Mode)
	if err != nil {
		return errors.Wrap(err, "cs.New() failed")
	}
	c.cs = engine
	c.dc = newDiscache()
	return nil
}

func (c *Capstr) Dis(mem []byte, addr uint64) ([]models.Ins, error) {
	if c.cs == nil {
		if err := c.Open(); err != nil {
			return nil, err
		}
	}
	if dis, ok := c.dc.get(addr, mem); ok {
		return dis, nil
	}
	dis, err := c.cs.Dis(mem, addr, 0)
	if err != nil {
		return nil, errors.Wrap(err, "capstone disassembly failed")
	}
	ret := make([]models.Ins, len(dis))
	for i, v := range dis {
		ret[i] = v
	}
	c.dc.put(addr, mem, ret)
	return ret, nil
}

// Disas renders one instruction per line with its encoding, padded to the
// widest instruction.
func Disas(d models.Disassembler, mem []byte, addr uint64) (string, error) {
	if len(mem) == 0 {
		return "", nil
	}
	dis, err := d.Dis(mem, addr)
	if err != nil {
		return "", err
	}
	width := 0
	for _, ins := range dis {
		if n := len(ins.Bytes()); n > width {
			width = n
		}
	}
	out := make([]string, len(dis))
	for i, ins := range dis {
		pad := strings.Repeat(" ", (width-len(ins.Bytes()))*2)
		data := pad + hex.EncodeToString(ins.Bytes())
		out[i] = fmt.Sprintf("%#x: %s %s %s", ins.Addr(), data, ins.Mnemonic(), ins.OpStr())
	}
	return strings.Join(out, "\n"), nil
}
