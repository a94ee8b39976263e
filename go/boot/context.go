package boot

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

// BootContext is what the earlier boot stages left behind, captured once and
// passed along explicitly.
type BootContext struct {
	BootIndex uint32
	Device    models.BootDevice
	// Entry is where the next stage image (ATF) was placed.
	Entry uint64
}

// CaptureBootContext reads the ROM boot index before anything else can
// overwrite it, unlocks the control MMRs and decodes the boot medium.
func CaptureBootContext(p models.Platform, prof *Profile, config *models.Config, entry uint64) (*BootContext, error) {
	idx, err := p.ReadReg(prof.BootParamTableIndex)
	if err != nil {
		return nil, errors.Wrap(err, "boot index read failed")
	}
	if err := prof.UnlockAll(p); err != nil {
		return nil, errors.Wrap(err, "control MMR unlock failed")
	}
	ctx := &BootContext{BootIndex: idx, Entry: entry}
	ctx.Device, err = prof.BootDevice(p, idx)
	if err == MCUOnly {
		config.Printf("ERROR: %s\n", err)
		err = nil
	}
	if err != nil {
		return nil, err
	}
	config.Debugf("boot index %d, boot device %s", idx, ctx.Device)
	return ctx, nil
}
