// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/harness/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

// compressFiles archives every regular file under src, names in the
// archive are slash separated and relative to src.
func compressFiles(src, dst, author string, version int64) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("destination file %s exists, will not overwrite", dst)
	}

	builder, err := kar.NewBuilder(kar.Header{
		Author:      author,
		DateCreated: time.Now().Unix(),
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	if err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		name, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if name == "." {
			name = info.Name()
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		log.WithField("file", name).Info("adding")
		return builder.Add(filepath.ToSlash(name), f)
	}); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	log.WithFields(log.Fields{"archive": dst, "files": builder.Len(), "bytes": written}).Info("archive written")
	return out.Close()
}

// extractFiles writes every file in the archive under dst.
func extractFiles(src, dst string) error {
	r, err := mmap.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return errors.Wrap(err, src)
	}

	for _, name := range ar.Names() {
		target, err := extractPath(dst, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := extractFile(ar, name, target); err != nil {
			return err
		}
		log.WithField("file", target).Info("extracted")
	}
	return nil
}

// extractPath keeps archived names from escaping dst.
func extractPath(dst, name string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(name))
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("archived name %q escapes %s", name, dst)
	}
	return target, nil
}

func extractFile(ar *kar.Archive, name, target string) error {
	in, err := ar.Open(name)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "extract %s", name)
	}
	return out.Close()
}

func listFiles(src string, w io.Writer) error {
	r, err := mmap.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return errors.Wrap(err, src)
	}

	h := ar.Header()
	fmt.Fprintf(w, "author %s, version %d, created %s\n", h.Author, h.Version, time.Unix(h.DateCreated, 0).UTC().Format(time.RFC3339))
	for _, e := range h.Index {
		fmt.Fprintf(w, "%10d %10d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}
