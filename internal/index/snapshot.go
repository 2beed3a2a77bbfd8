package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Snapshot layout, little endian:
//
//	magic   [4]byte "VRIX"
//	version uint32
//	dim     uint32
//	count   uint32
//	data    [count*dim]float32
var snapshotMagic = [4]byte{'V', 'R', 'I', 'X'}

const snapshotVersion uint32 = 1

var ErrBadSnapshot = errors.New("index: bad snapshot")

type snapshotHeader struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint32
}

// Save writes the index in the snapshot format.
func (f *Flat) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	hdr := snapshotHeader{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		Dim:     uint32(f.dim),
		Count:   uint32(f.Len()),
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("index: write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, f.data); err != nil {
		return fmt.Errorf("index: write vectors: %w", err)
	}
	return bw.Flush()
}

// maxSnapshotDim bounds the dimension accepted from a snapshot header.
const maxSnapshotDim = 1 << 16

// Load reads an index written by Save. Stored vectors are already
// normalised and are not normalised again.
func Load(r io.Reader) (*Flat, error) {
	return load(r, -1)
}

// load reads a snapshot. When size is known the header must account for it
// exactly; otherwise vectors are read row by row so a corrupt count fails
// at end of input instead of allocating up front.
func load(r io.Reader, size int64) (*Flat, error) {
	br := bufio.NewReader(r)
	var hdr snapshotHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadSnapshot, err)
	}
	if hdr.Magic != snapshotMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadSnapshot, hdr.Magic[:])
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadSnapshot, hdr.Version)
	}
	if hdr.Dim == 0 || hdr.Count == 0 {
		return nil, fmt.Errorf("%w: empty index", ErrBadSnapshot)
	}
	if hdr.Dim > maxSnapshotDim {
		return nil, fmt.Errorf("%w: dimension %d", ErrBadSnapshot, hdr.Dim)
	}
	dim, count := int(hdr.Dim), int(hdr.Count)
	if size >= 0 {
		want := int64(binary.Size(hdr)) + 4*int64(dim)*int64(count)
		if size != want {
			return nil, fmt.Errorf("%w: %d bytes for %d x %d vectors, want %d", ErrBadSnapshot, size, count, dim, want)
		}
		data := make([]float32, dim*count)
		if err := binary.Read(br, binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("%w: vectors: %v", ErrBadSnapshot, err)
		}
		return &Flat{dim: dim, data: data}, nil
	}

	var data []float32
	row := make([]float32, dim)
	for i := 0; i < count; i++ {
		if err := binary.Read(br, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("%w: vector %d of %d: %v", ErrBadSnapshot, i, count, err)
		}
		data = append(data, row...)
	}
	return &Flat{dim: dim, data: data}, nil
}

// SaveFile writes the snapshot to path through a temp file and rename.
func (f *Flat) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vrix-*")
	if err != nil {
		return fmt.Errorf("index: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Save(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("index: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("index: rename snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot from path.
func LoadFile(path string) (*Flat, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: open snapshot: %w", err)
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return nil, fmt.Errorf("index: stat snapshot: %w", err)
	}
	return load(fh, info.Size())
}
