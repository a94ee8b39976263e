// Package soc simulates enough of a K3 SoC to run the boot flow: the
// loading core's memory and registers, the system controller and the
// remote cores.
package soc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/boot"
	"github.com/lunixbochs/rproc/go/models"
	"github.com/lunixbochs/rproc/go/models/cpu"
	"github.com/lunixbochs/rproc/go/rproc"
	"github.com/lunixbochs/rproc/go/sci"
)

const (
	MCU_MSRAM_BASE = 0x41c00000
	MCU_MSRAM_SIZE = 0x80000
	DDR_BASE       = 0x80000000
	DEFAULT_DDR    = 0x2000000
	MMR_WINDOW     = 0x20000
)

type Options struct {
	Config *models.Config
	// DDRSize defaults to DEFAULT_DDR.
	DDRSize uint64
	Device  models.BootDevice
	// Emulate runs firmware on the cores the controller powers up.
	Emulate   bool
	EmuLimit  uint64
	MaxEvents int
}

// Sim is a simulated SoC. It is the loading core's models.Platform.
type Sim struct {
	*cpu.Mem

	Profile *boot.Profile
	Ctrl    *sci.Controller
	Sci     *sci.Client
	Rproc   *rproc.Registry
	Config  *models.Config

	Jumps     []uint64
	Panics    []error
	Events    int
	MaxEvents int
	// cores shut down by the controller, in order
	Idled []uint32
	Runs  []*Run

	opts Options
}

func New(prof *boot.Profile, opts Options) (*Sim, error) {
	if opts.DDRSize == 0 {
		opts.DDRSize = DEFAULT_DDR
	}
	if opts.MaxEvents == 0 {
		opts.MaxEvents = 1
	}
	s := &Sim{
		Mem:       cpu.NewMem(binary.LittleEndian),
		Profile:   prof,
		Config:    opts.Config,
		MaxEvents: opts.MaxEvents,
		opts:      opts,
	}
	if err := s.mapMemory(); err != nil {
		return nil, err
	}
	s.Ctrl = sci.NewController(s.knownDevices(), s.Config)
	s.Sci = sci.NewClient(s.Ctrl, prof.HostID, s.Config)
	if opts.Emulate {
		s.Ctrl.OnPowerOn = s.powerOn
	}
	s.Rproc = rproc.NewRegistry(s, s.Config)
	for _, c := range prof.Cores {
		if err := s.Rproc.Add(c.RprocID, s.core(c)); err != nil {
			return nil, err
		}
	}
	if err := s.SetBootMedia(opts.Device, boot.K3_PRIMARY_BOOTMODE); err != nil {
		return nil, err
	}
	return s, nil
}

type region struct {
	addr, size uint64
	desc       string
}

func (s *Sim) mapMemory() error {
	maps := []region{
		{MCU_MSRAM_BASE, MCU_MSRAM_SIZE, "MCU_MSRAM"},
		{DDR_BASE, s.opts.DDRSize, "DDR"},
	}
	for _, c := range s.Profile.Cores {
		for _, w := range c.Memory {
			maps = append(maps, region{w.PA, w.Size, c.Name + "_" + w.Name})
		}
	}
	for _, m := range maps {
		if err := s.MemMap(m.addr, m.size, cpu.PROT_ALL, m.desc); err != nil {
			return errors.Wrapf(err, "map %s", m.desc)
		}
	}
	for _, m := range s.Profile.MMR {
		if err := s.MemMapIO(m.Base, MMR_WINDOW, fmt.Sprintf("CTRL_MMR_%#x", m.Base)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) knownDevices() []uint32 {
	ids := append([]uint32(nil), s.Profile.PutDevices...)
	for _, id := range s.Profile.ShutdownCores {
		ids = append(ids, uint32(id))
	}
	for _, c := range s.Profile.Cores {
		ids = append(ids, c.DevID)
	}
	return ids
}

func (s *Sim) core(c boot.CoreConfig) *rproc.Core {
	timeout := time.Duration(s.Profile.StartTimeoutMs) * time.Millisecond
	return &rproc.Core{
		CoreName: c.Name,
		Mem:      s,
		Ops: &rproc.SciCore{
			Sci:     s.Sci,
			ProcID:  c.ProcID,
			DevID:   c.DevID,
			Windows: rproc.Windows{List: c.Windows, Strict: c.Strict},
		},
		Timeout: timeout,
		Config:  s.Config,
	}
}

// SetBootMedia latches DEVSTAT and the ROM boot index for a boot from dev.
func (s *Sim) SetBootMedia(dev models.BootDevice, index uint32) error {
	wkup, main := boot.EncodeDevstat(dev)
	if err := s.WriteReg(s.Profile.WkupDevstat, wkup); err != nil {
		return err
	}
	if err := s.WriteReg(s.Profile.MainDevstat, main); err != nil {
		return err
	}
	return s.WriteReg(s.Profile.BootParamTableIndex, index)
}

func (s *Sim) ReadReg(addr uint64) (uint32, error) {
	v, err := s.ReadUint(addr, 4)
	return uint32(v), errors.Wrapf(err, "register %#x", addr)
}

func (s *Sim) WriteReg(addr uint64, val uint32) error {
	return errors.Wrapf(s.WriteUint(addr, 4, uint64(val)), "register %#x", addr)
}

// Jump records the hand-off; the loading core's next stage is not run.
func (s *Sim) Jump(entry uint64) error {
	s.Jumps = append(s.Jumps, entry)
	s.Config.Printf("Jumping to %#x\n", entry)
	return nil
}

// WaitForEvent lets the controller finish queued core shutdowns, then
// returns false once MaxEvents events were taken.
func (s *Sim) WaitForEvent() bool {
	s.Events++
	for _, id := range s.Ctrl.CoreIdle() {
		s.Idled = append(s.Idled, id)
		s.Config.Debugf("sim: device %d powered off", id)
	}
	return s.Events < s.MaxEvents
}

func (s *Sim) Panic(err error) {
	s.Panics = append(s.Panics, err)
	s.Config.Errorf("%+v", err)
}

// Boot runs the whole flow the way SPL does on entry: capture the boot
// context, then hand off. entry is where the next stage image sits.
func (s *Sim) Boot(loc models.FirmwareLocator, entry uint64) (*boot.Orchestrator, boot.State, error) {
	ctx, err := boot.CaptureBootContext(s, s.Profile, s.Config, entry)
	if err != nil {
		return nil, boot.Init, err
	}
	o := &boot.Orchestrator{
		Platform: s,
		Sci:      s.Sci,
		Rproc:    s.Rproc,
		Locator:  loc,
		Profile:  s.Profile,
		Config:   s.Config,
	}
	state, err := boot.Main(o, ctx)
	return o, state, err
}
