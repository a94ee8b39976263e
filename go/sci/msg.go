// Package sci speaks a TI-SCI style message protocol to the system
// controller that owns device power and processor control on K3 SoCs.
package sci

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

// message types
const (
	MSG_SET_DEVICE_STATE = 0x0200
	MSG_GET_DEVICE_STATE = 0x0201
	MSG_PROC_REQUEST     = 0xc000
	MSG_PROC_RELEASE     = 0xc001
	MSG_PROC_SET_CONFIG  = 0xc100
	MSG_PROC_WAIT_STATUS = 0xc401
)

// header flags
const (
	FLAG_REQ_ACK_ON_PROCESSED = 1 << 1
	FLAG_RESP_GENERIC_ACK     = 1 << 1
)

const DEVICE_FLAG_EXCLUSIVE = 1 << 10

// device software states
const (
	DEVICE_SW_STATE_AUTO_OFF  = 0
	DEVICE_SW_STATE_RETENTION = 1
	DEVICE_SW_STATE_ON        = 2
)

// device hardware states, as reported in DeviceStateResp.CurrentSt
const (
	DEVICE_HW_STATE_OFF   = 0
	DEVICE_HW_STATE_ON    = 1
	DEVICE_HW_STATE_TRANS = 2
)

var order = &struc.Options{Order: binary.LittleEndian}

var (
	Nak          = errors.New("message not acknowledged")
	BadMessage   = errors.New("malformed message")
	UnknownReply = errors.New("reply does not match request")
)

type Header struct {
	Type  uint16
	Host  uint8
	Seq   uint8
	Flags uint32
}

type SetDeviceState struct {
	Hdr   Header
	ID    uint32
	Flags uint32
	State uint8
}

type GetDeviceState struct {
	Hdr Header
	ID  uint32
}

type DeviceStateResp struct {
	Hdr          Header
	ContextLoss  uint32
	Resets       uint32
	ProgrammedSt uint8
	CurrentSt    uint8
}

type ProcRequest struct {
	Hdr    Header
	ProcID uint8
}

type ProcSetConfig struct {
	Hdr              Header
	ProcID           uint8
	BootVectorLow    uint32
	BootVectorHigh   uint32
	ConfigFlagsSet   uint32
	ConfigFlagsClear uint32
}

// ProcWaitStatus asks the controller to act once the processor reaches a
// status, here: executing wfe or wfi.
type ProcWaitStatus struct {
	Hdr            Header
	ProcID         uint8
	NumWait        uint8
	NumMatch       uint8
	DelayUs        uint8
	DelayBeforeUs  uint8
	StatusSetAll   uint32
	StatusClearAll uint32
}

const PROC_STATUS_WFI = 1 << 1

func encode(msg interface{}) ([]byte, error) {
	var buf bytes.Buffer
	s := &models.StrucStream{Stream: &buf, Options: order}
	if err := s.Pack(msg); err != nil {
		return nil, errors.Wrap(err, "message pack failed")
	}
	return buf.Bytes(), nil
}

func decode(p []byte, msg interface{}) error {
	s := &models.StrucStream{Stream: bytes.NewBuffer(p), Options: order}
	if err := s.Unpack(msg); err != nil {
		return errors.Wrap(BadMessage, err.Error())
	}
	return nil
}
