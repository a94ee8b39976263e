package cpu

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var DUMP_MAGIC = "RPMD"

// dump format:
// DumpHeader, then a snappy stream of
// 1..Count: DumpRegion, <raw memory bytes of Size>
type DumpHeader struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
	Count   uint32
}

type DumpRegion struct {
	Addr uint64
	Size uint64
	Prot uint32
	// right-null-padded
	Desc string `struc:"[32]byte"`
}

var dumpOptions = &struc.Options{Order: binary.BigEndian}

// WriteDump saves every mapped region as remote cores see it, so a dump taken
// after a load shows exactly what was flushed.
func WriteDump(w io.Writer, mem *Mem) error {
	regions := mem.Regions()
	header := &DumpHeader{Magic: DUMP_MAGIC, Version: 1, Count: uint32(len(regions))}
	if err := struc.PackWithOptions(w, header, dumpOptions); err != nil {
		return errors.Wrap(err, "failed to pack dump header")
	}
	zw := snappy.NewBufferedWriter(w)
	for _, p := range regions {
		region := &DumpRegion{Addr: p.Addr, Size: p.Size, Prot: uint32(p.Prot), Desc: p.Desc}
		if err := struc.PackWithOptions(zw, region, dumpOptions); err != nil {
			return errors.Wrapf(err, "failed to pack region %s", p)
		}
		if _, err := zw.Write(p.Data); err != nil {
			return errors.Wrapf(err, "failed to write region %s", p)
		}
	}
	return zw.Close()
}

// ReadDump loads a dump written by WriteDump.
func ReadDump(r io.Reader) (Pages, error) {
	var header DumpHeader
	if err := struc.UnpackWithOptions(r, &header, dumpOptions); err != nil {
		return nil, errors.Wrap(err, "failed to unpack dump header")
	}
	if header.Magic != DUMP_MAGIC {
		return nil, errors.New("invalid dump magic")
	}
	if header.Version != 1 {
		return nil, errors.Errorf("unsupported dump version %d", header.Version)
	}
	zr := snappy.NewReader(r)
	pages := make(Pages, 0, header.Count)
	for i := uint32(0); i < header.Count; i++ {
		var region DumpRegion
		if err := struc.UnpackWithOptions(zr, &region, dumpOptions); err != nil {
			return nil, errors.Wrapf(err, "failed to unpack region %d", i)
		}
		data := make([]byte, region.Size)
		if _, err := io.ReadFull(zr, data); err != nil {
			return nil, errors.Wrapf(err, "short region %d", i)
		}
		pages = append(pages, &Page{
			Addr: region.Addr,
			Size: region.Size,
			Prot: int(region.Prot),
			Data: data,
			Desc: strings.TrimRight(region.Desc, "\x00"),
		})
	}
	return pages, nil
}
