// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"io/ioutil"
	"sort"

	"github.com/pierrec/lz4"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if num, err := r.ReadAt(prefix, 0); err != nil && !(err == io.EOF && num == len(prefix)) {
		if err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(prefix[MagicLength:])
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); int64(num) < headerSize {
		if err == nil || err == io.EOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}

	ar := &Archive{
		reader: r,
		header: header,
		start:  dataOffset(headerSize),
		index:  make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		ar.index[e.Name] = e
	}
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader io.ReaderAt
	header Header
	start  int64
	index  map[string]IndexEntry
}

// Header returns the archive header, index included.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists every file in the archive, sorted.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != r.Size() {
		return nil, ErrFileFormat
	}
	return data, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.index[name]
	if !ok {
		return nil, ErrNotFound
	}
	section := io.NewSectionReader(a.reader, a.start+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:        entry,
		decompressor: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry        IndexEntry
	decompressor io.Reader
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (int, error) {
	return r.decompressor.Read(p)
}

// Size is the decompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Name of the file being read.
func (r *Reader) Name() string {
	return r.entry.Name
}
