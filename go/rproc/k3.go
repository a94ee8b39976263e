package rproc

import (
	"time"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

// SciCore runs a K3 core through the system controller: the boot vector is
// programmed under a processor request, and the core is powered with a
// device get. ARM64 clusters use it without windows, R5F cores map their
// TCMs through Windows.
type SciCore struct {
	Sci    models.SystemController
	ProcID uint8
	DevID  uint32
	Windows
}

func (s *SciCore) SetBootAddr(addr uint64) error {
	if err := s.Sci.ProcRequest(s.ProcID); err != nil {
		return errors.Wrapf(err, "proc %d request", s.ProcID)
	}
	err := errors.Wrapf(s.Sci.ProcSetBootAddr(s.ProcID, addr), "proc %d boot vector", s.ProcID)
	if rerr := s.Sci.ProcRelease(s.ProcID); err == nil && rerr != nil {
		err = errors.Wrapf(rerr, "proc %d release", s.ProcID)
	}
	return err
}

// TI-SCI hardware state of a powered device
const deviceHWStateOn = 1

// deviceStater is implemented by controllers that can report power state.
type deviceStater interface {
	DeviceState(id uint32) (programmed, current uint8, err error)
}

const startPoll = time.Millisecond

// Start powers the core, then polls its state until it is on or timeout
// passes. Controllers that cannot report state are trusted on the get.
func (s *SciCore) Start(timeout time.Duration) error {
	if err := s.Sci.GetDevice(s.DevID); err != nil {
		return errors.Wrapf(err, "device %d get", s.DevID)
	}
	st, ok := s.Sci.(deviceStater)
	if !ok || timeout <= 0 {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		_, cur, err := st.DeviceState(s.DevID)
		if err != nil {
			return err
		}
		if cur == deviceHWStateOn {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(StartTimeout, "device %d after %s", s.DevID, timeout)
		}
		time.Sleep(startPoll)
	}
}

func (s *SciCore) Stop() error {
	return errors.Wrapf(s.Sci.PutDevice(s.DevID), "device %d put", s.DevID)
}
