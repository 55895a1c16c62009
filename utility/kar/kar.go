// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kar is an api for an lz4 backed file format.
// It's purpose is to be well suited for streaming resources
// from it. It's designed to be memory mapped, so (unlike tar) it knows
// where all the files are located before they're read. The archive itself
// is not compressed, every file is individually compressed so it can be
// read from its place and decompressed on the fly. The renderer ships its
// compiled shader packs in this format.
package kar

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a kar archive")
	ErrNotFound   = errors.New("file not found in kar archive")
)

// Sizes relevant to the header of file
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 16
)

var magic = [MagicLength]byte{'K', 'A', 'R', '\x00'}

// IndexEntry is info for one file in the file index.
// Offset is relative to the start of the data section.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for kar files.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

// dataOffset is where the data section starts for a header of the given size.
func dataOffset(headerSize int64) int64 {
	return MagicLength + HeaderSizeNumberLength + headerSize
}

func int64ToBinary(num int64) []byte {
	bts := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(bts, uint64(num))
	return bts
}

func binaryToint64(bts []byte) (int64, error) {
	if len(bts) < 8 {
		return 0, ErrFileFormat
	}
	return int64(binary.LittleEndian.Uint64(bts)), nil
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	enc := gob.NewEncoder(&encoded)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(bts))
	return dec.Decode(obj)
}
