package boot

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

// DEVSTAT fields
const (
	WKUP_DEVSTAT_PRIMARY_BOOTMODE_MASK  = 0x38
	WKUP_DEVSTAT_PRIMARY_BOOTMODE_SHIFT = 3
	WKUP_DEVSTAT_MCU_ONLY_MASK          = 1 << 6

	MAIN_DEVSTAT_BOOT_MODE_B_MASK            = 1 << 0
	BOOT_MODE_B_SHIFT                        = 4
	MAIN_DEVSTAT_BKUP_BOOTMODE_MASK          = 0xe
	MAIN_DEVSTAT_BKUP_BOOTMODE_SHIFT         = 1
	MAIN_DEVSTAT_PRIM_BOOTMODE_MMC_PORT_MASK = 1 << 6
	MAIN_DEVSTAT_PRIM_BOOTMODE_PORT_SHIFT    = 6
	MAIN_DEVSTAT_BKUP_MMC_PORT_MASK          = 1 << 7
	MAIN_DEVSTAT_BKUP_MMC_PORT_SHIFT         = 7
)

// backup boot modes
const (
	BACKUP_BOOT_DEVICE_RAM      = 0x0
	BACKUP_BOOT_DEVICE_USB      = 0x1
	BACKUP_BOOT_DEVICE_UART     = 0x3
	BACKUP_BOOT_DEVICE_ETHERNET = 0x4
	BACKUP_BOOT_DEVICE_MMC2     = 0x5
	BACKUP_BOOT_DEVICE_SPI      = 0x6
	BACKUP_BOOT_DEVICE_I2C      = 0x7
)

// K3_PRIMARY_BOOTMODE is the boot index the ROM reports when it booted from
// the primary medium.
const K3_PRIMARY_BOOTMODE = 0x0

// MCUOnly is returned when the SoC boots with only the MCU domain powered.
var MCUOnly = errors.New("MCU only boot is not yet supported")

func backupBootMedia(mainDevstat uint32) models.BootDevice {
	bkup := (mainDevstat & MAIN_DEVSTAT_BKUP_BOOTMODE_MASK) >> MAIN_DEVSTAT_BKUP_BOOTMODE_SHIFT
	switch bkup {
	case BACKUP_BOOT_DEVICE_USB:
		return models.BootDeviceUSB
	case BACKUP_BOOT_DEVICE_UART:
		return models.BootDeviceUART
	case BACKUP_BOOT_DEVICE_ETHERNET:
		return models.BootDeviceEthernet
	case BACKUP_BOOT_DEVICE_MMC2:
		port := (mainDevstat & MAIN_DEVSTAT_BKUP_MMC_PORT_MASK) >> MAIN_DEVSTAT_BKUP_MMC_PORT_SHIFT
		if port == 0 {
			return models.BootDeviceMMC1
		}
		return models.BootDeviceMMC2
	case BACKUP_BOOT_DEVICE_SPI:
		return models.BootDeviceSPI
	case BACKUP_BOOT_DEVICE_I2C:
		return models.BootDeviceI2C
	}
	return models.BootDeviceRAM
}

func primaryBootMedia(mainDevstat, wkupDevstat uint32) models.BootDevice {
	mode := (wkupDevstat & WKUP_DEVSTAT_PRIMARY_BOOTMODE_MASK) >> WKUP_DEVSTAT_PRIMARY_BOOTMODE_SHIFT
	mode |= (mainDevstat & MAIN_DEVSTAT_BOOT_MODE_B_MASK) << BOOT_MODE_B_SHIFT
	dev := models.BootDevice(mode)
	if dev == models.BootDeviceOSPI || dev == models.BootDeviceQSPI {
		dev = models.BootDeviceSPI
	}
	if dev == models.BootDeviceMMC2 {
		port := (mainDevstat & MAIN_DEVSTAT_PRIM_BOOTMODE_MMC_PORT_MASK) >> MAIN_DEVSTAT_PRIM_BOOTMODE_PORT_SHIFT
		if port == 0 {
			dev = models.BootDeviceMMC1
		}
	}
	return dev
}

// BootDevice decodes the medium the ROM booted from. MCU only boots report
// RAM along with MCUOnly.
func (p *Profile) BootDevice(regs models.Platform, bootIndex uint32) (models.BootDevice, error) {
	wkup, err := regs.ReadReg(p.WkupDevstat)
	if err != nil {
		return models.BootDeviceRAM, errors.Wrap(err, "WKUP_DEVSTAT read failed")
	}
	if wkup&WKUP_DEVSTAT_MCU_ONLY_MASK != 0 {
		return models.BootDeviceRAM, MCUOnly
	}
	// MAIN CTRL MMR can only be read if MCU ONLY is 0
	main, err := regs.ReadReg(p.MainDevstat)
	if err != nil {
		return models.BootDeviceRAM, errors.Wrap(err, "MAIN_DEVSTAT read failed")
	}
	if bootIndex == K3_PRIMARY_BOOTMODE {
		return primaryBootMedia(main, wkup), nil
	}
	return backupBootMedia(main), nil
}

// EncodeDevstat returns DEVSTAT values a ROM would latch for a primary boot
// from dev. Simulators use it to seed the registers.
func EncodeDevstat(dev models.BootDevice) (wkup, main uint32) {
	mode := uint32(dev)
	if dev == models.BootDeviceMMC1 {
		mode = uint32(models.BootDeviceMMC2)
	}
	wkup = (mode << WKUP_DEVSTAT_PRIMARY_BOOTMODE_SHIFT) & WKUP_DEVSTAT_PRIMARY_BOOTMODE_MASK
	main = (mode >> BOOT_MODE_B_SHIFT) & MAIN_DEVSTAT_BOOT_MODE_B_MASK
	if dev == models.BootDeviceMMC2 {
		main |= MAIN_DEVSTAT_PRIM_BOOTMODE_MMC_PORT_MASK
	}
	return wkup, main
}
