package cpu

import (
	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	"github.com/pkg/errors"
)

type Keystone struct {
	Arch ks.Architecture
	Mode ks.Mode
	ks   *ks.Keystone
}

func (k *Keystone) Open() (err error) {
	k.ks, err = ks.New(k.Arch, k.Mode)
	return errors.Wrap(err, "ks.New() failed")
}

// Asm assembles src as if placed at addr.
func (k *Keystone) Asm(src string, addr uint64) ([]byte, error) {
	if k.ks == nil {
		if err := k.Open(); err != nil {
			return nil, err
		}
	}
	out, _, ok := k.ks.Assemble(src, addr)
	if !ok {
		return nil, errors.Wrapf(k.ks.LastError(), "assembly of %q at %#x failed", src, addr)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("%q assembled to nothing", src)
	}
	return out, nil
}

func (k *Keystone) Close() error {
	if k.ks == nil {
		return nil
	}
	err := k.ks.Close()
	k.ks = nil
	return errors.Wrap(err, "ks.Close() failed")
}
