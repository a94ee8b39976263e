package boot

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

const (
	CTRL_MMR0_PARTITION_SIZE      = 0x4000
	CTRLMMR_LOCK_KICK0            = 0x01008
	CTRLMMR_LOCK_KICK0_UNLOCK_VAL = 0x68ef3490
	CTRLMMR_LOCK_KICK1            = 0x0100c
	CTRLMMR_LOCK_KICK1_UNLOCK_VAL = 0xd172bc5a
)

// UnlockMMR opens one control MMR partition with the two step kick sequence.
func UnlockMMR(regs models.Platform, base uint64, partition uint32) error {
	partBase := base + uint64(partition)*CTRL_MMR0_PARTITION_SIZE
	if err := regs.WriteReg(partBase+CTRLMMR_LOCK_KICK0, CTRLMMR_LOCK_KICK0_UNLOCK_VAL); err != nil {
		return errors.Wrapf(err, "kick0 of %#x", partBase)
	}
	return errors.Wrapf(regs.WriteReg(partBase+CTRLMMR_LOCK_KICK1, CTRLMMR_LOCK_KICK1_UNLOCK_VAL),
		"kick1 of %#x", partBase)
}

// UnlockAll makes every control module register in the profile writable.
func (p *Profile) UnlockAll(regs models.Platform) error {
	for _, m := range p.MMR {
		for _, part := range m.Partitions {
			if err := UnlockMMR(regs, m.Base, part); err != nil {
				return err
			}
		}
	}
	return nil
}
