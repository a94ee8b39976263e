package loader

import (
	"github.com/pkg/errors"
)

// LoadRaw places a flat binary at device address da without interpreting it.
// An image that already sits at the translated address is only flushed.
func LoadRaw(t Target, img Image, da uint64) error {
	va, ok := t.DaToVa(da, img.Size())
	if !ok {
		return errors.Wrapf(BadDeviceAddress, "raw image da %#x size %#x", da, img.Size())
	}
	if va != img.Addr && img.Size() > 0 {
		if err := t.MemWrite(va, img.Data); err != nil {
			return errors.Wrapf(err, "raw image write to %#x failed", va)
		}
	}
	return errors.Wrapf(t.FlushCache(va, img.Size()), "raw image cache flush at %#x failed", va)
}
