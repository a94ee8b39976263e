// Package arch names the instruction sets remote cores run.
package arch

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/rproc/go/arch/arm"
	"github.com/lunixbochs/rproc/go/arch/arm64"
	"github.com/lunixbochs/rproc/go/models"
)

var archMap = map[string]*models.Arch{
	"arm":   arm.Arch,
	"thumb": arm.Thumb,
	"arm64": arm64.Arch,
}

// core kinds in SoC profiles
var kindMap = map[string]string{
	"arm64": "arm64",
	"a72":   "arm64",
	"r5f":   "arm",
}

func GetArch(name string) (*models.Arch, error) {
	a, ok := archMap[name]
	if !ok {
		return nil, errors.Errorf("Arch '%s' not found.", name)
	}
	return a, nil
}

// ForCore returns the instruction set a core of the given profile kind
// boots in.
func ForCore(kind string) (*models.Arch, error) {
	name, ok := kindMap[kind]
	if !ok {
		return nil, errors.Errorf("no instruction set for core kind '%s'", kind)
	}
	return GetArch(name)
}
