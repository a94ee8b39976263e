package firmware

import (
	"io/ioutil"
	"path"
	"path/filepath"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
)

// DirSource serves firmware from a host directory standing in for the SD
// card's boot partition.
type DirSource struct {
	Root string
}

func (d *DirSource) ReadFile(name string) ([]byte, error) {
	// names can't climb out of Root
	clean := path.Clean("/" + name)
	data, err := ioutil.ReadFile(filepath.Join(d.Root, filepath.FromSlash(clean)))
	return data, errors.WithStack(err)
}

// List returns the regular files in Root in natural order ("fw2" < "fw10").
func (d *DirSource) List() ([]string, error) {
	infos, err := ioutil.ReadDir(d.Root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var names []string
	for _, fi := range infos {
		if fi.Mode().IsRegular() {
			names = append(names, fi.Name())
		}
	}
	sort.Sort(sortorder.Natural(names))
	return names, nil
}
