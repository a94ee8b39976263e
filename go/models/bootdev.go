package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// BootDevice is the medium the boot ROM loaded the current stage from,
// numbered the way the K3 ROM reports it.
type BootDevice uint32

const (
	BootDeviceHyperflash BootDevice = 0x00
	BootDeviceOSPI       BootDevice = 0x01
	BootDeviceQSPI       BootDevice = 0x02
	BootDeviceSPI        BootDevice = 0x03
	BootDeviceEthernet   BootDevice = 0x04
	BootDeviceI2C        BootDevice = 0x06
	BootDeviceUART       BootDevice = 0x07
	BootDeviceMMC2       BootDevice = 0x10
	BootDeviceMMC1       BootDevice = 0x11
	BootDeviceUSB        BootDevice = 0x12
	BootDeviceUFS        BootDevice = 0x13
	BootDeviceGPMC       BootDevice = 0x14
	BootDevicePCIE       BootDevice = 0x15
	BootDeviceXSPI       BootDevice = 0x16
	BootDeviceRAM        BootDevice = 0x17
)

// DFU shares the USB code.
const BootDeviceDFU = BootDeviceUSB

var bootDeviceNames = map[BootDevice]string{
	BootDeviceHyperflash: "hyperflash",
	BootDeviceOSPI:       "ospi",
	BootDeviceQSPI:       "qspi",
	BootDeviceSPI:        "spi",
	BootDeviceEthernet:   "ethernet",
	BootDeviceI2C:        "i2c",
	BootDeviceUART:       "uart",
	BootDeviceMMC2:       "mmc2",
	BootDeviceMMC1:       "mmc1",
	BootDeviceUSB:        "usb",
	BootDeviceUFS:        "ufs",
	BootDeviceGPMC:       "gpmc",
	BootDevicePCIE:       "pcie",
	BootDeviceXSPI:       "xspi",
	BootDeviceRAM:        "ram",
}

func (b BootDevice) String() string {
	if s, ok := bootDeviceNames[b]; ok {
		return s
	}
	return fmt.Sprintf("device %d", uint32(b))
}

func ParseBootDevice(s string) (BootDevice, error) {
	for k, v := range bootDeviceNames {
		if v == s {
			return k, nil
		}
	}
	return BootDeviceRAM, errors.Errorf("unknown boot device %q", s)
}
