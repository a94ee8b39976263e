package soc

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/arch"
	"github.com/lunixbochs/rproc/go/boot"
	"github.com/lunixbochs/rproc/go/cpu/unicorn"
)

// Run is one emulated start of a remote core.
type Run struct {
	Core   string
	Entry  uint64
	Result *unicorn.Result
	Err    error
}

func (s *Sim) coreByDev(dev uint32) (*boot.CoreConfig, bool) {
	for i := range s.Profile.Cores {
		if s.Profile.Cores[i].DevID == dev {
			return &s.Profile.Cores[i], true
		}
	}
	return nil, false
}

// powerOn runs the firmware of a core the controller just powered, from the
// boot vector it was given.
func (s *Sim) powerOn(dev uint32) {
	c, ok := s.coreByDev(dev)
	if !ok {
		return
	}
	run := &Run{Core: c.Name}
	s.Runs = append(s.Runs, run)
	entry, ok := s.Ctrl.BootAddr(c.ProcID)
	if !ok {
		run.Err = errors.Errorf("%s powered with no boot vector", c.Name)
		s.Config.Errorf("%v", run.Err)
		return
	}
	run.Entry = entry
	a, err := arch.ForCore(c.Kind)
	// thumb entry points have bit 0 set
	if err == nil && a.Name == "arm" && entry&1 == 1 {
		a, err = arch.GetArch("thumb")
		entry &^= 1
	}
	if err != nil {
		run.Err = err
		s.Config.Errorf("%v", err)
		return
	}
	r := &unicorn.Runner{
		Builder: a.Cpu,
		PC:      a.PC,
		Mem:     s.Mem,
		Limit:   s.opts.EmuLimit,
		Config:  s.Config,
	}
	for _, w := range c.Windows {
		if w.DA != w.PA {
			r.Aliases = append(r.Aliases, unicorn.Alias{DA: w.DA, PA: w.PA, Size: w.Size})
		}
	}
	run.Result, run.Err = r.Run(entry)
	if run.Err != nil {
		s.Config.Errorf("%s: %v", c.Name, run.Err)
	} else {
		s.Config.Printf("%s: firmware stopped at %#x\n", c.Name, run.Result.PC)
	}
}
