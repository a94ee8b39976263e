// Package firmware finds remote core firmware on the boot medium and copies
// it to the load address named by the environment.
package firmware

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

var NoFirmwareName = errors.New("no firmware name set")

// Source reads firmware files from storage.
type Source interface {
	ReadFile(name string) ([]byte, error)
	List() ([]string, error)
}

// Locator implements models.FirmwareLocator over an Env and a Source. Only
// SD card boots (MMC2) carry a filesystem to load from.
type Locator struct {
	Env    Env
	Source Source
	Mem    models.Memory
	Config *models.Config
	Device models.BootDevice
}

func NewLocator(env Env, src Source, mem models.Memory, config *models.Config) *Locator {
	if env == nil {
		env = make(Env)
	}
	return &Locator{Env: env, Source: src, Mem: mem, Config: config, Device: models.BootDeviceRAM}
}

// InitEnv records the boot device and fills in the storage variables for it.
func (l *Locator) InitEnv(dev models.BootDevice) {
	l.Device = dev
	switch dev {
	case models.BootDeviceMMC2:
		part := l.Env.Get("bootpart")
		l.Env.Put("storage_interface", "mmc")
		l.Env.Put("fw_dev_part", part)
	case models.BootDeviceSPI:
		l.Env.Put("storage_interface", "ubi")
		l.Env.Put("fw_ubi_mtdpart", "UBI")
		l.Env.Put("fw_ubi_volume", "UBI0")
	default:
		l.Config.Printf("init_env from device %d not supported!\n", uint32(dev))
	}
}

// Locate copies the firmware named by nameVar to the address in addrVar.
// Nothing configured is not an error: size 0 comes back.
func (l *Locator) Locate(nameVar, addrVar string) (int64, uint64, error) {
	if l.Device != models.BootDeviceMMC2 {
		l.Config.Printf("Loading rproc fw image from device %d not supported!\n", uint32(l.Device))
		return 0, 0, nil
	}
	name := l.Env.Get(nameVar)
	loadaddr := l.Env.GetHex(addrVar, 0)
	if loadaddr == 0 {
		return 0, 0, nil
	}
	if name == "" {
		return 0, loadaddr, errors.Wrap(NoFirmwareName, nameVar)
	}
	if l.Source == nil {
		return 0, loadaddr, errors.New("no firmware loader")
	}
	data, err := l.Source.ReadFile(name)
	if err != nil {
		return 0, loadaddr, errors.Wrapf(err, "request of %s failed", name)
	}
	if err := l.Mem.MemWrite(loadaddr, data); err != nil {
		return 0, loadaddr, errors.Wrapf(err, "%s does not fit at %#x", name, loadaddr)
	}
	l.Config.Debugf("firmware: %s (%d bytes) at %#x", name, len(data), loadaddr)
	return int64(len(data)), loadaddr, nil
}
