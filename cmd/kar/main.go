// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/roast/utility/kar"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

func init() {
	currentUserName = "unknown"
	if u, err := user.Current(); err == nil {
		currentUserName = u.Name
	}
}

var (
	currentUserName string
	author          = flag.String("author", "", "Set the author of the package when compressing")
	version         = flag.Int64("version", 1, "Archive version number to create it with")
	extract         = flag.String("e", "", "Extract the file given")
	compress        = flag.String("c", "", "Compress the given file/folder")
	dstFile         = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	silent          = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	if *extract != "" && *compress != "" {
		log.Fatal("only one operation at a time")
	}

	switch {
	case *extract != "":
		if err := extractFiles(); err != nil {
			log.WithError(err).Fatal("extract")
		}
	case *compress != "":
		if err := compressFiles(); err != nil {
			log.WithError(err).Fatal("compress")
		}
	default:
		flag.PrintDefaults()
	}
}

func compressFiles() error {
	if _, err := os.Stat(*dstFile); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	if err := filepath.Walk(*compress, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	}); err != nil {
		return err
	}

	name := *author
	if name == "" {
		name = currentUserName
	}
	karBuilder := kar.NewBuilder(kar.Header{
		Author:      name,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})

	for _, ftc := range filesToCompress {
		if err := addFile(karBuilder, ftc); err != nil {
			return err
		}
		log.WithField("file", ftc).Info("added")
	}

	dst, err := os.Create(*dstFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	written, err := karBuilder.WriteTo(dst)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"files": karBuilder.Len(),
		"bytes": written,
	}).Info("archive written")
	return nil
}

func addFile(b *kar.Builder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rel, err := filepath.Rel(*compress, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}
	return b.Add(filepath.ToSlash(rel), f)
}

func extractFiles() error {
	r, err := mmap.Open(*extract)
	if err != nil {
		return err
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return err
	}

	dir := *dstFile
	if dir == "out.kar" {
		dir = strings.TrimSuffix(filepath.Base(*extract), filepath.Ext(*extract))
	}

	header := ar.Header()
	log.WithFields(log.Fields{
		"author":  header.Author,
		"created": time.Unix(header.DateCreated, 0),
		"version": header.Version,
	}).Info("extracting")

	for _, name := range ar.Names() {
		target := filepath.Join(dir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
			return errors.New(name + ": path escapes the destination")
		}
		if err := extractFile(ar, name, target); err != nil {
			return err
		}
		log.WithField("file", target).Info("extracted")
	}
	return nil
}

func extractFile(ar *kar.Archive, name, target string) error {
	src, err := ar.Open(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
