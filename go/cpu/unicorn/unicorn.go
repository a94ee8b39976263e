package unicorn

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/rproc/go/models/cpu"
)

type Builder struct {
	Arch, Mode int
}

func (b *Builder) New() (cpu.Cpu, error) {
	u, err := uc.NewUnicorn(b.Arch, b.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &UnicornCpu{u}, nil
}

// UnicornCpu is a cpu.Cpu. Mapping and register access come straight from
// the engine.
type UnicornCpu struct {
	uc.Unicorn
}

func (u *UnicornCpu) Backend() interface{} {
	return u.Unicorn
}

// RunFor runs from begin until the pc reaches until, count instructions
// retire, or timeout microseconds pass. Zero disables a limit.
func (u *UnicornCpu) RunFor(begin, until, count, timeout uint64) error {
	return u.Unicorn.StartWithOptions(begin, until, &uc.UcOptions{Timeout: timeout, Count: count})
}

// OnFault registers fn for unmapped and protected accesses. Returning false
// stops the emulator.
func (u *UnicornCpu) OnFault(fn func(access int, addr uint64, size int) bool) error {
	mask := uc.HOOK_MEM_READ_UNMAPPED | uc.HOOK_MEM_WRITE_UNMAPPED | uc.HOOK_MEM_FETCH_UNMAPPED |
		uc.HOOK_MEM_READ_PROT | uc.HOOK_MEM_WRITE_PROT | uc.HOOK_MEM_FETCH_PROT
	_, err := u.Unicorn.HookAdd(mask, func(_ uc.Unicorn, access int, addr uint64, size int, val int64) bool {
		return fn(access, addr, size)
	}, 1, 0)
	return errors.Wrap(err, "fault hook")
}
