package rproc

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/loader"
	"github.com/lunixbochs/rproc/go/models"
)

// Registry maps remoteproc ids to handles. Every call looks the handle up
// again.
type Registry struct {
	Mem    models.Memory
	Config *models.Config

	devs  map[int]Device
	ready bool
}

func NewRegistry(mem models.Memory, config *models.Config) *Registry {
	return &Registry{Mem: mem, Config: config, devs: make(map[int]Device)}
}

func (r *Registry) Add(id int, dev Device) error {
	if _, ok := r.devs[id]; ok {
		return errors.Errorf("remoteproc %d already registered", id)
	}
	r.devs[id] = dev
	return nil
}

func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.devs))
	for id := range r.devs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Registry) Initialized() bool { return r.ready }

// Init probes every registered processor. Calling it again is a no-op.
func (r *Registry) Init() error {
	if r.ready {
		return nil
	}
	if len(r.devs) == 0 {
		return errors.Wrap(NoDevice, "no remote processors registered")
	}
	for _, id := range r.IDs() {
		if p, ok := r.devs[id].(Prober); ok {
			if err := p.Probe(); err != nil {
				return errors.Wrapf(err, "remoteproc %d", id)
			}
		}
	}
	r.ready = true
	return nil
}

func (r *Registry) Get(id int) (Device, error) {
	if !r.ready {
		return nil, NotInitialized
	}
	dev, ok := r.devs[id]
	if !ok {
		return nil, errors.Wrapf(NoDevice, "remoteproc %d", id)
	}
	return dev, nil
}

// Load hands size bytes of local memory at addr to processor id.
func (r *Registry) Load(id int, addr, size uint64) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	data, err := r.Mem.MemRead(addr, size)
	if err != nil {
		return errors.Wrapf(err, "remoteproc %d: image at %#x(%#x) unreadable", id, addr, size)
	}
	r.Config.Debugf("Loading to %d from %#x size %#x", id, addr, size)
	return dev.Load(loader.Image{Addr: addr, Data: data})
}

func (r *Registry) Start(id int) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	return dev.Start()
}

func (r *Registry) Stop(id int) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	return dev.Stop()
}

func (r *Registry) Reset(id int) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	if rs, ok := dev.(Resetter); ok {
		return rs.Reset()
	}
	return dev.Stop()
}

// Describe is one line of "rproc list".
func (r *Registry) Describe(id int) string {
	dev, ok := r.devs[id]
	if !ok {
		return fmt.Sprintf("%d - not present", id)
	}
	name := fmt.Sprintf("%T", dev)
	if n, ok := dev.(Namer); ok {
		name = n.Name()
	}
	state := "not loaded"
	if c, ok := dev.(*Core); ok {
		if addr, loaded := c.BootAddr(); loaded {
			state = fmt.Sprintf("boot %#x", addr)
		}
	}
	return fmt.Sprintf("%d - Name:'%s' %s", id, name, state)
}
