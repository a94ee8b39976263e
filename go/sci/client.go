package sci

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

// Transport carries one message to the controller. Messages sent without
// FLAG_REQ_ACK_ON_PROCESSED get a nil reply.
type Transport interface {
	Send(msg []byte) ([]byte, error)
}

type exclusiveDev struct {
	id    uint32
	count int
}

// Client implements models.SystemController on top of a Transport.
type Client struct {
	T      Transport
	Host   uint8
	Config *models.Config

	seq       uint8
	exclusive []*exclusiveDev
}

func NewClient(t Transport, host uint8, config *models.Config) *Client {
	return &Client{T: t, Host: host, Config: config}
}

func (c *Client) header(typ uint16, flags uint32) Header {
	c.seq++
	return Header{Type: typ, Host: c.Host, Seq: c.seq, Flags: flags}
}

// do sends msg and, when an ack was requested, checks the reply into resp.
func (c *Client) do(hdr Header, msg interface{}, resp interface{}) error {
	p, err := encode(msg)
	if err != nil {
		return err
	}
	reply, err := c.T.Send(p)
	if err != nil {
		return errors.Wrapf(err, "message %#x send failed", hdr.Type)
	}
	if hdr.Flags&FLAG_REQ_ACK_ON_PROCESSED == 0 {
		return nil
	}
	var rh Header
	if err := decode(reply, &rh); err != nil {
		return err
	}
	if rh.Type != hdr.Type || rh.Seq != hdr.Seq {
		return errors.Wrapf(UnknownReply, "sent %#x/%d got %#x/%d", hdr.Type, hdr.Seq, rh.Type, rh.Seq)
	}
	if rh.Flags&FLAG_RESP_GENERIC_ACK == 0 {
		return errors.Wrapf(Nak, "message %#x", hdr.Type)
	}
	if resp != nil {
		return decode(reply, resp)
	}
	return nil
}

func (c *Client) setDeviceState(id, flags uint32, state uint8, ack bool) error {
	var hflags uint32
	if ack {
		hflags = FLAG_REQ_ACK_ON_PROCESSED
	}
	hdr := c.header(MSG_SET_DEVICE_STATE, hflags)
	msg := &SetDeviceState{Hdr: hdr, ID: id, Flags: flags, State: state}
	c.Config.Debugf("sci: set device %d state %d flags %#x", id, state, flags)
	return errors.Wrapf(c.do(hdr, msg, nil), "device %d state %d", id, state)
}

// GetDevice powers a device on and claims it exclusively until
// ReleaseExclusiveDevices.
func (c *Client) GetDevice(id uint32) error {
	if err := c.setDeviceState(id, DEVICE_FLAG_EXCLUSIVE, DEVICE_SW_STATE_ON, true); err != nil {
		return err
	}
	for _, d := range c.exclusive {
		if d.id == id {
			d.count++
			return nil
		}
	}
	c.exclusive = append(c.exclusive, &exclusiveDev{id: id, count: 1})
	return nil
}

func (c *Client) PutDevice(id uint32) error {
	if err := c.setDeviceState(id, 0, DEVICE_SW_STATE_AUTO_OFF, true); err != nil {
		return err
	}
	for i, d := range c.exclusive {
		if d.id == id {
			if d.count--; d.count == 0 {
				c.exclusive = append(c.exclusive[:i], c.exclusive[i+1:]...)
			}
			break
		}
	}
	return nil
}

// DeviceState returns the programmed and current state of a device.
func (c *Client) DeviceState(id uint32) (programmed, current uint8, err error) {
	hdr := c.header(MSG_GET_DEVICE_STATE, FLAG_REQ_ACK_ON_PROCESSED)
	var resp DeviceStateResp
	if err := c.do(hdr, &GetDeviceState{Hdr: hdr, ID: id}, &resp); err != nil {
		return 0, 0, errors.Wrapf(err, "device %d get state", id)
	}
	return resp.ProgrammedSt, resp.CurrentSt, nil
}

// ReleaseExclusiveDevices drops every claim taken with GetDevice. Every put
// is attempted; the first failure is returned.
func (c *Client) ReleaseExclusiveDevices() error {
	var first error
	devs := c.exclusive
	c.exclusive = nil
	for _, d := range devs {
		c.Config.Debugf("sci: release id = %d, cnt = %d", d.id, d.count)
		for i := 0; i < d.count; i++ {
			if err := c.setDeviceState(d.id, 0, DEVICE_SW_STATE_AUTO_OFF, true); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Exclusive lists the devices currently claimed.
func (c *Client) Exclusive() []uint32 {
	ids := make([]uint32, len(c.exclusive))
	for i, d := range c.exclusive {
		ids[i] = d.id
	}
	return ids
}

func (c *Client) ProcRequest(id uint8) error {
	hdr := c.header(MSG_PROC_REQUEST, FLAG_REQ_ACK_ON_PROCESSED)
	return errors.Wrapf(c.do(hdr, &ProcRequest{Hdr: hdr, ProcID: id}, nil), "proc %d request", id)
}

func (c *Client) ProcRelease(id uint8) error {
	hdr := c.header(MSG_PROC_RELEASE, FLAG_REQ_ACK_ON_PROCESSED)
	return errors.Wrapf(c.do(hdr, &ProcRequest{Hdr: hdr, ProcID: id}, nil), "proc %d release", id)
}

func (c *Client) ProcSetBootAddr(id uint8, addr uint64) error {
	hdr := c.header(MSG_PROC_SET_CONFIG, FLAG_REQ_ACK_ON_PROCESSED)
	msg := &ProcSetConfig{
		Hdr:            hdr,
		ProcID:         id,
		BootVectorLow:  uint32(addr),
		BootVectorHigh: uint32(addr >> 32),
	}
	return errors.Wrapf(c.do(hdr, msg, nil), "proc %d boot vector %#x", id, addr)
}

// ProcShutdownNoWait queues a power-off of the core that takes effect when it
// next executes wfe or wfi. Neither message is acknowledged.
func (c *Client) ProcShutdownNoWait(id uint8) error {
	hdr := c.header(MSG_PROC_WAIT_STATUS, 0)
	wait := &ProcWaitStatus{
		Hdr:          hdr,
		ProcID:       id,
		NumWait:      0,
		NumMatch:     1,
		DelayUs:      0,
		StatusSetAll: PROC_STATUS_WFI,
	}
	if err := c.do(hdr, wait, nil); err != nil {
		return errors.Wrapf(err, "proc %d wait status", id)
	}
	return c.setDeviceState(uint32(id), 0, DEVICE_SW_STATE_AUTO_OFF, false)
}
