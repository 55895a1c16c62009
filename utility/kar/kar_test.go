// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devblok/roast/utility/kar"
	"golang.org/x/exp/mmap"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildArchive(t *testing.T) []byte {
	t.Helper()
	builder := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err := builder.Add("test", strings.NewReader(testString1)); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("shaders/mesh.vert.spv", strings.NewReader(testString2)); err != nil {
		t.Fatal(err)
	}
	if builder.Len() != 2 {
		t.Fatal("incorrect number of files present")
	}

	buf := bytes.NewBuffer([]byte{})
	written, err := builder.WriteTo(buf)
	if err != nil {
		t.Fatal(err)
	}
	if written != int64(buf.Len()) {
		t.Fatalf("reported %d bytes written, buffer holds %d", written, buf.Len())
	}
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.Open("test")
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(testString1)) {
		t.Errorf("incorrect size %d", f.Size())
	}

	result := make([]byte, len(testString1))
	if _, err := io.ReadFull(f, result); err != nil {
		t.Fatal(err)
	}
	if string(result) != testString1 {
		t.Error("test string does not match up")
	}
}

func TestCreateAndReadAll(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.ReadAll("shaders/mesh.vert.spv")
	if err != nil {
		t.Fatal(err)
	}
	if string(f) != testString2 {
		t.Error("test string does not match up")
	}

	if names := ar.Names(); len(names) != 2 || names[0] != "shaders/mesh.vert.spv" {
		t.Errorf("unexpected names %v", names)
	}
	if ar.Header().Author != "devblok" {
		t.Errorf("unexpected author %s", ar.Header().Author)
	}
}

func TestOpenMissing(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ar.Open("nope"); err != kar.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenNotArchive(t *testing.T) {
	if _, err := kar.Open(strings.NewReader("definitely not an archive at all")); err != kar.ErrFileFormat {
		t.Errorf("expected ErrFileFormat, got %v", err)
	}
	if _, err := kar.Open(strings.NewReader("KAR")); err != kar.ErrFileFormat {
		t.Errorf("expected ErrFileFormat for a short file, got %v", err)
	}
}

func TestOpenmmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opentest.kar")
	if err := os.WriteFile(path, buildArchive(t), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ar.ReadAll("test")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != testString1 {
		t.Error("test string does not match up")
	}
}
