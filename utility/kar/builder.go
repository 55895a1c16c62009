// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) *Builder {
	return &Builder{
		header: header,
		files:  make(map[string]compressedFile),
	}
}

type compressedFile struct {
	size int64
	data []byte
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, Builder
// is the way to create one. Files given to Add are compressed right
// away and kept until WriteTo bundles them together.
type Builder struct {
	header Header

	mutex sync.Mutex
	files map[string]compressedFile
}

// Add compresses everything read from r and stores it under name.
// Adding the same name twice replaces the earlier file. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	written, err := io.Copy(writer, r)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files[name] = compressedFile{
		size: written,
		data: compressed.Bytes(),
	}
	return nil
}

// Len returns the number of files added so far.
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use. Files are laid out in name order.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	header := b.header
	header.Index = header.Index[:0]
	var offset int64
	for _, name := range names {
		f := b.files[name]
		header.Index = append(header.Index, IndexEntry{
			Name:           name,
			Offset:         offset,
			Size:           f.size,
			CompressedSize: int64(len(f.data)),
		})
		offset += int64(len(f.data))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	write := func(p []byte) error {
		n, err := w.Write(p)
		total += int64(n)
		return err
	}

	if err := write(magic[:]); err != nil {
		return total, err
	}
	if err := write(int64ToBinary(int64(len(rawHeader)))); err != nil {
		return total, err
	}
	if err := write(rawHeader); err != nil {
		return total, err
	}
	for _, name := range names {
		if err := write(b.files[name].data); err != nil {
			return total, err
		}
	}
	return total, nil
}
