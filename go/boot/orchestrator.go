// Package boot sequences the hand-off from the loading core to the remote
// processors and the next boot stage.
package boot

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/models"
)

type State int

const (
	Init State = iota
	ReleaseExclusiveResources
	InitRemoteprocSubsystem
	StartAuxiliaryCores
	LoadSecondaryImage
	StartRemoteCore
	ShutdownAndIdle
	Execute
	Idle
)

var stateNames = []string{
	"Init",
	"ReleaseExclusiveResources",
	"InitRemoteprocSubsystem",
	"StartAuxiliaryCores",
	"LoadSecondaryImage",
	"StartRemoteCore",
	"ShutdownAndIdle",
	"Execute",
	"Idle",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FatalError is a failure with no safe continuation. Main halts the
// platform on it.
type FatalError struct {
	State State
	Err   error
}

func (f *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", f.State, f.Err)
}

func (f *FatalError) Cause() error  { return f.Err }
func (f *FatalError) Unwrap() error { return f.Err }

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Registry is the remoteproc subsystem as the orchestrator uses it.
type Registry interface {
	Init() error
	Load(id int, addr, size uint64) error
	Start(id int) error
	Reset(id int) error
}

// envInitializer is implemented by locators that configure their storage
// from the boot medium.
type envInitializer interface {
	InitEnv(dev models.BootDevice)
}

type Orchestrator struct {
	Platform models.Platform
	Sci      models.SystemController
	Rproc    Registry
	Locator  models.FirmwareLocator
	Profile  *Profile
	Config   *models.Config

	trace []State
}

func (o *Orchestrator) enter(s State) {
	o.trace = append(o.trace, s)
	o.Config.Debugf("boot: -> %s", s)
}

// Trace lists the states entered by Run, in order.
func (o *Orchestrator) Trace() []State {
	return append([]State(nil), o.trace...)
}

func (o *Orchestrator) fatal(s State, err error) error {
	o.Config.Stage(s.String(), models.OutcomeFailed, err.Error())
	return &FatalError{State: s, Err: err}
}

// Run drives one boot to a terminal state: Execute when a local image was
// started, Idle after shutting down. Fatal failures come back as
// *FatalError.
func (o *Orchestrator) Run(ctx *BootContext) (State, error) {
	o.trace = nil
	o.enter(Init)
	if o.Sci == nil {
		return Init, o.fatal(Init, errors.New("Failed to get SYSFW"))
	}

	o.enter(ReleaseExclusiveResources)
	if err := o.Sci.ReleaseExclusiveDevices(); err != nil {
		o.Config.Stage(ReleaseExclusiveResources.String(), models.OutcomeFailed, err.Error())
	}

	o.enter(InitRemoteprocSubsystem)
	if err := o.Rproc.Init(); err != nil {
		return InitRemoteprocSubsystem, o.fatal(InitRemoteprocSubsystem,
			errors.Wrap(err, "rproc failed to be initialized"))
	}
	if e, ok := o.Locator.(envInitializer); ok {
		e.InitEnv(ctx.Device)
	}

	o.enter(StartAuxiliaryCores)
	for _, aux := range o.Profile.AuxCores {
		o.startAux(aux)
	}

	o.enter(LoadSecondaryImage)
	size, loadaddr, err := o.Locator.Locate(o.Profile.FwNameVar, o.Profile.FwAddrVar)
	if err != nil {
		o.Config.Stage(LoadSecondaryImage.String(), models.OutcomeFailed, err.Error())
		size, loadaddr = 0, 0
	}

	if o.Profile.StartPrimaryFirst {
		if err := o.startPrimary(ctx); err != nil {
			return StartRemoteCore, err
		}
	}
	img, ok := o.localImage(size, loadaddr)
	if !ok {
		return o.shutdownAndIdle()
	}
	if !o.Profile.StartPrimaryFirst {
		if err := o.startPrimary(ctx); err != nil {
			return StartRemoteCore, err
		}
	}
	return o.execute(img)
}

// localImage applies the guard: an image was found and it looks like ELF.
func (o *Orchestrator) localImage(size int64, loadaddr uint64) (loader.Image, bool) {
	if size <= 0 || loadaddr == 0 {
		o.Config.Stage(LoadSecondaryImage.String(), models.OutcomeSkipped, "no image")
		return loader.Image{}, false
	}
	data, err := o.Platform.MemRead(loadaddr, uint64(size))
	if err != nil {
		o.Config.Stage(LoadSecondaryImage.String(), models.OutcomeFailed, err.Error())
		return loader.Image{}, false
	}
	img := loader.Image{Addr: loadaddr, Data: data}
	if !loader.ValidElfImage(img) {
		o.Config.Stage(LoadSecondaryImage.String(), models.OutcomeSkipped, "not an ELF image")
		return loader.Image{}, false
	}
	o.Config.Stage(LoadSecondaryImage.String(), models.OutcomeOk, img.String())
	return img, true
}

func (o *Orchestrator) startAux(aux AuxCore) {
	size, loadaddr, err := o.Locator.Locate(aux.FwNameVar, aux.FwAddrVar)
	if err == nil && (size <= 0 || loadaddr == 0) {
		err = errors.New("no firmware")
	}
	if err == nil {
		if err = o.Rproc.Load(aux.RprocID, loadaddr, uint64(size)); err != nil {
			err = errors.Wrap(err, "Firmware failed to start on rproc")
		}
	}
	if err == nil {
		if err = o.Rproc.Start(aux.RprocID); err != nil {
			err = errors.Wrap(err, "Firmware start failed")
		}
	}
	if err != nil {
		o.Config.Stage(StartAuxiliaryCores.String(), models.OutcomeFailed,
			fmt.Sprintf("rproc %d: %v", aux.RprocID, err))
		if rerr := o.Rproc.Reset(aux.RprocID); rerr != nil {
			o.Config.Errorf("rproc %d reset failed: %v", aux.RprocID, rerr)
		}
		return
	}
	o.Config.Printf("Remoteproc %d started successfully\n", aux.RprocID)
}

func (o *Orchestrator) startPrimary(ctx *BootContext) error {
	o.enter(StartRemoteCore)
	id := o.Profile.PrimaryCore
	if err := o.Rproc.Load(id, ctx.Entry, o.Profile.PrimaryLoadSize); err != nil {
		return o.fatal(StartRemoteCore, errors.Wrapf(err, "failed to load on rproc %d", id))
	}
	// extra newline to set the next stage's logs apart
	o.Config.Printf("Starting ATF on ARM64 core...\n\n")
	if err := o.Rproc.Start(id); err != nil {
		return o.fatal(StartRemoteCore, errors.Wrapf(err, "failed to start on rproc %d", id))
	}
	return nil
}

// execute places the local image the way SPL jumps to a non-FIT image:
// segments by physical address, no sanity checks, then the jump. A segment
// that cannot be placed is reported and the jump still happens.
func (o *Orchestrator) execute(img loader.Image) (State, error) {
	o.enter(Execute)
	entry, err := loader.LoadPhdrs(o.Platform, img)
	if err != nil {
		o.Config.Stage(Execute.String(), models.OutcomeFailed, err.Error())
	} else {
		o.Config.Stage(Execute.String(), models.OutcomeOk, fmt.Sprintf("entry %#x", entry))
	}
	if err := o.Platform.Jump(entry); err != nil {
		return Execute, o.fatal(Execute, errors.Wrapf(err, "jump to %#x", entry))
	}
	return Execute, nil
}

func (o *Orchestrator) shutdownAndIdle() (State, error) {
	o.enter(ShutdownAndIdle)
	o.Config.Debugf("Shutting down...")
	for _, id := range o.Profile.PutDevices {
		if err := o.Sci.PutDevice(id); err != nil {
			return ShutdownAndIdle, o.fatal(ShutdownAndIdle, errors.Wrapf(err, "Failed to put device %d", id))
		}
	}
	for _, id := range o.Profile.ShutdownCores {
		// takes effect at the next wfe
		if err := o.Sci.ProcShutdownNoWait(id); err != nil {
			return ShutdownAndIdle, o.fatal(ShutdownAndIdle,
				errors.Wrapf(err, "Failed sending core %d shutdown message", id))
		}
	}
	o.Config.Stage(ShutdownAndIdle.String(), models.OutcomeOk, "")
	o.enter(Idle)
	for o.Platform.WaitForEvent() {
	}
	return Idle, nil
}

// Main runs the boot and halts the platform on a fatal error.
func Main(o *Orchestrator, ctx *BootContext) (State, error) {
	state, err := o.Run(ctx)
	if IsFatal(err) {
		o.Platform.Panic(err)
	}
	return state, err
}
