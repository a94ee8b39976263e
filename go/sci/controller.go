package sci

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/models"
)

type device struct {
	state uint8
	// host holding the exclusive claim, 0 if none
	owner     uint8
	exclusive bool
	// state queries left to answer "in transition" after power on
	settle int
}

func (d *device) current() uint8 {
	switch {
	case d.state != DEVICE_SW_STATE_ON:
		return DEVICE_HW_STATE_OFF
	case d.settle > 0:
		d.settle--
		return DEVICE_HW_STATE_TRANS
	}
	return DEVICE_HW_STATE_ON
}

type proc struct {
	owner    uint8
	boot     uint64
	bootSet  bool
	shutdown bool
}

// Controller simulates the system controller firmware. It is a Transport,
// so a Client can talk to it directly.
type Controller struct {
	Config *models.Config
	// OnPowerOn is called when a device turns on.
	OnPowerOn func(id uint32)
	// PowerUpPolls is how many state queries see a device in transition
	// after it was turned on.
	PowerUpPolls int

	known   map[uint32]bool
	devices map[uint32]*device
	procs   map[uint8]*proc
	// devices waiting for their core to idle before powering off
	pending []uint32
	trace   []string
}

// NewController accepts any device id when known is empty.
func NewController(known []uint32, config *models.Config) *Controller {
	c := &Controller{
		Config:  config,
		devices: make(map[uint32]*device),
		procs:   make(map[uint8]*proc),
	}
	if len(known) > 0 {
		c.known = make(map[uint32]bool)
		for _, id := range known {
			c.known[id] = true
		}
	}
	return c
}

func (c *Controller) dev(id uint32) (*device, error) {
	if c.known != nil && !c.known[id] {
		return nil, errors.Errorf("unknown device %d", id)
	}
	d, ok := c.devices[id]
	if !ok {
		d = &device{}
		c.devices[id] = d
	}
	return d, nil
}

func (c *Controller) proc(id uint8) *proc {
	p, ok := c.procs[id]
	if !ok {
		p = &proc{}
		c.procs[id] = p
	}
	return p
}

func (c *Controller) log(format string, a ...interface{}) {
	s := fmt.Sprintf(format, a...)
	c.trace = append(c.trace, s)
	c.Config.Debugf("sysfw: %s", s)
}

// Send handles one message and returns the reply, or nil if none was asked
// for. A refused request is a NAK reply, not an error.
func (c *Controller) Send(msg []byte) ([]byte, error) {
	var hdr Header
	if err := decode(msg, &hdr); err != nil {
		return nil, err
	}
	var reply interface{}
	herr := c.handle(hdr, msg, &reply)
	if herr != nil {
		c.log("nak %#x: %v", hdr.Type, herr)
	}
	if hdr.Flags&FLAG_REQ_ACK_ON_PROCESSED == 0 {
		return nil, nil
	}
	rh := Header{Type: hdr.Type, Host: hdr.Host, Seq: hdr.Seq}
	if herr == nil {
		rh.Flags = FLAG_RESP_GENERIC_ACK
	}
	if r, ok := reply.(*DeviceStateResp); ok && herr == nil {
		r.Hdr = rh
		return encode(r)
	}
	return encode(&rh)
}

func (c *Controller) handle(hdr Header, msg []byte, reply *interface{}) error {
	switch hdr.Type {
	case MSG_SET_DEVICE_STATE:
		var m SetDeviceState
		if err := decode(msg, &m); err != nil {
			return err
		}
		return c.setDeviceState(hdr.Host, m.ID, m.Flags, m.State, hdr.Flags&FLAG_REQ_ACK_ON_PROCESSED == 0)
	case MSG_GET_DEVICE_STATE:
		var m GetDeviceState
		if err := decode(msg, &m); err != nil {
			return err
		}
		d, err := c.dev(m.ID)
		if err != nil {
			return err
		}
		*reply = &DeviceStateResp{ProgrammedSt: d.state, CurrentSt: d.current()}
		return nil
	case MSG_PROC_REQUEST:
		var m ProcRequest
		if err := decode(msg, &m); err != nil {
			return err
		}
		p := c.proc(m.ProcID)
		if p.owner != 0 && p.owner != hdr.Host {
			return errors.Errorf("proc %d owned by host %d", m.ProcID, p.owner)
		}
		p.owner = hdr.Host
		c.log("proc %d requested by host %d", m.ProcID, hdr.Host)
		return nil
	case MSG_PROC_RELEASE:
		var m ProcRequest
		if err := decode(msg, &m); err != nil {
			return err
		}
		p := c.proc(m.ProcID)
		if p.owner != hdr.Host {
			return errors.Errorf("proc %d not owned by host %d", m.ProcID, hdr.Host)
		}
		p.owner = 0
		c.log("proc %d released", m.ProcID)
		return nil
	case MSG_PROC_SET_CONFIG:
		var m ProcSetConfig
		if err := decode(msg, &m); err != nil {
			return err
		}
		p := c.proc(m.ProcID)
		if p.owner != hdr.Host {
			return errors.Errorf("proc %d not owned by host %d", m.ProcID, hdr.Host)
		}
		p.boot = uint64(m.BootVectorHigh)<<32 | uint64(m.BootVectorLow)
		p.bootSet = true
		c.log("proc %d boot vector %#x", m.ProcID, p.boot)
		return nil
	case MSG_PROC_WAIT_STATUS:
		var m ProcWaitStatus
		if err := decode(msg, &m); err != nil {
			return err
		}
		c.proc(m.ProcID).shutdown = true
		c.log("proc %d waiting for wfi", m.ProcID)
		return nil
	}
	return errors.Errorf("unsupported message %#x", hdr.Type)
}

func (c *Controller) setDeviceState(host uint8, id, flags uint32, state uint8, noWait bool) error {
	d, err := c.dev(id)
	if err != nil {
		return err
	}
	if d.exclusive && d.owner != host {
		return errors.Errorf("device %d held exclusively by host %d", id, d.owner)
	}
	// a no-wait power-off of a core waiting for wfi is deferred
	if noWait && state == DEVICE_SW_STATE_AUTO_OFF && id <= 0xff && c.proc(uint8(id)).shutdown {
		c.pending = append(c.pending, id)
		c.log("device %d off queued", id)
		return nil
	}
	d.exclusive = flags&DEVICE_FLAG_EXCLUSIVE != 0
	if d.exclusive {
		d.owner = host
	} else {
		d.owner = 0
	}
	was := d.state
	d.state = state
	if state == DEVICE_SW_STATE_ON && was != DEVICE_SW_STATE_ON {
		d.settle = c.PowerUpPolls
	}
	c.log("device %d state %d exclusive %v", id, state, d.exclusive)
	if state == DEVICE_SW_STATE_ON && was != DEVICE_SW_STATE_ON && c.OnPowerOn != nil {
		c.OnPowerOn(id)
	}
	return nil
}

// CoreIdle tells the controller the waiting cores executed wfe; queued
// shutdowns complete and their device ids are returned in queue order.
func (c *Controller) CoreIdle() []uint32 {
	done := c.pending
	c.pending = nil
	for _, id := range done {
		d, _ := c.dev(id)
		d.state = DEVICE_SW_STATE_AUTO_OFF
		d.exclusive, d.owner = false, 0
		c.proc(uint8(id)).shutdown = false
		c.log("device %d off", id)
	}
	return done
}

func (c *Controller) Pending() []uint32 {
	return append([]uint32(nil), c.pending...)
}

// DeviceState returns a device's state and whether it is claimed.
func (c *Controller) DeviceState(id uint32) (uint8, bool) {
	if d, ok := c.devices[id]; ok {
		return d.state, d.exclusive
	}
	return DEVICE_SW_STATE_AUTO_OFF, false
}

func (c *Controller) BootAddr(id uint8) (uint64, bool) {
	if p, ok := c.procs[id]; ok {
		return p.boot, p.bootSet
	}
	return 0, false
}

// On lists the powered devices.
func (c *Controller) On() []uint32 {
	var ids []uint32
	for id, d := range c.devices {
		if d.state == DEVICE_SW_STATE_ON {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Trace is the controller's log of handled messages.
func (c *Controller) Trace() []string {
	return append([]string(nil), c.trace...)
}
