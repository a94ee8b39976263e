package firmware

import (
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/dsoprea/go-ext4"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
)

// Ext4Source reads firmware out of an ext4 filesystem image, such as the
// root partition of an SD card dump.
type Ext4Source struct {
	rs io.ReadSeeker
	f  *os.File
}

// OpenExt4 opens the filesystem starting offset bytes into the image file.
func OpenExt4(path string, offset int64) (*Ext4Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	if offset < 0 || offset > fi.Size() {
		f.Close()
		return nil, errors.Errorf("partition offset %d outside image of %d bytes", offset, fi.Size())
	}
	s, err := NewExt4Source(io.NewSectionReader(f, offset, fi.Size()-offset))
	if err != nil {
		f.Close()
		return nil, err
	}
	s.f = f
	return s, nil
}

// NewExt4Source checks for an ext4 superblock in rs.
func NewExt4Source(rs io.ReadSeeker) (*Ext4Source, error) {
	s := &Ext4Source{rs: rs}
	if _, err := s.blockGroupDescriptor(ext4.InodeRootDirectory); err != nil {
		return nil, errors.Wrap(err, "not an ext4 filesystem")
	}
	return s, nil
}

func (s *Ext4Source) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

func (s *Ext4Source) blockGroupDescriptor(inode int) (bgd *ext4.BlockGroupDescriptor, err error) {
	if _, err := s.rs.Seek(ext4.Superblock0Offset, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	sb, err := ext4.NewSuperblockWithReader(s.rs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	bgdl, err := ext4.NewBlockGroupDescriptorListWithReadSeeker(s.rs, sb)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bgdl.GetWithAbsoluteInode(inode)
}

// walk calls fn with each entry below dir until fn returns true.
func (s *Ext4Source) walk(dir int, fn func(p string, inode int) bool) error {
	bgd, err := s.blockGroupDescriptor(dir)
	if err != nil {
		return err
	}
	dw, err := ext4.NewDirectoryWalk(s.rs, bgd, dir)
	if err != nil {
		return errors.WithStack(err)
	}
	for {
		p, de, err := dw.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.WithStack(err)
		}
		if fn(p, int(de.Data().Inode)) {
			return nil
		}
	}
}

// lookup resolves path one component at a time. Walks that already report
// nested paths match on the whole remainder.
func (s *Ext4Source) lookup(dir int, path []string) (int, error) {
	rest := strings.Join(path, "/")
	var found, next int
	err := s.walk(dir, func(p string, inode int) bool {
		if p == rest {
			found = inode
			return true
		}
		if len(path) > 1 && p == path[0] {
			next = inode
			return true
		}
		return false
	})
	if err != nil || found != 0 || next == 0 {
		return found, err
	}
	return s.lookup(next, path[1:])
}

func (s *Ext4Source) ReadFile(name string) ([]byte, error) {
	name = strings.Trim(name, "/")
	found, err := s.lookup(ext4.InodeRootDirectory, strings.Split(name, "/"))
	if err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, errors.Errorf("%s: file not found", name)
	}
	bgd, err := s.blockGroupDescriptor(found)
	if err != nil {
		return nil, err
	}
	inode, err := ext4.NewInodeWithReadSeeker(bgd, s.rs, found)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	en := ext4.NewExtentNavigatorWithReadSeeker(s.rs, inode)
	data, err := ioutil.ReadAll(ext4.NewInodeReader(en))
	return data, errors.WithStack(err)
}

// List returns every path in the filesystem in natural order.
func (s *Ext4Source) List() ([]string, error) {
	var names []string
	err := s.walk(ext4.InodeRootDirectory, func(p string, inode int) bool {
		if p != "" && p != "." && p != ".." && p != "lost+found" && !strings.HasPrefix(p, "lost+found/") {
			names = append(names, p)
		}
		return false
	})
	sort.Sort(sortorder.Natural(names))
	return names, err
}
