// Package rproc drives remote processors: cores that the loading core fills
// with firmware and then releases from reset.
package rproc

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/loader"
)

var (
	NoDevice       = errors.New("no such remote processor")
	NotInitialized = errors.New("remoteproc subsystem not initialized")
	NotLoaded      = errors.New("no firmware loaded")
	StartTimeout   = errors.New("core did not power up")
)

// Device is a remote processor handle.
type Device interface {
	Load(img loader.Image) error
	Start() error
	Stop() error
}

// Translator maps a device address (as the remote core sees it) to an
// address the loading core can write.
type Translator interface {
	DaToVa(da, size uint64) (uint64, bool)
}

type Resetter interface {
	Reset() error
}

// Prober is called once by Registry.Init.
type Prober interface {
	Probe() error
}

type Namer interface {
	Name() string
}

// DaToVa translates through dev when it can, and is the identity otherwise.
func DaToVa(dev interface{}, da, size uint64) (uint64, bool) {
	if t, ok := dev.(Translator); ok {
		return t.DaToVa(da, size)
	}
	return da, true
}

// Window maps a range of device addresses onto SoC addresses, like an R5F
// TCM seen at 0 locally and at its bus address globally.
type Window struct {
	Name string `json:"name"`
	DA   uint64 `json:"da"`
	PA   uint64 `json:"pa"`
	Size uint64 `json:"size"`
}

func (w Window) translate(da, size uint64) (uint64, bool) {
	if da >= w.DA && size <= w.Size && da-w.DA <= w.Size-size {
		return w.PA + (da - w.DA), true
	}
	// already a bus address
	if da >= w.PA && size <= w.Size && da-w.PA <= w.Size-size {
		return da, true
	}
	return 0, false
}

// Windows translates through the first matching window. Addresses outside
// every window pass through unchanged unless strict is set.
type Windows struct {
	List   []Window
	Strict bool
}

func (w *Windows) DaToVa(da, size uint64) (uint64, bool) {
	for _, win := range w.List {
		if va, ok := win.translate(da, size); ok {
			return va, true
		}
	}
	if w.Strict {
		return 0, false
	}
	return da, true
}
