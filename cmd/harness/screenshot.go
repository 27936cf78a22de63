// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func encodeImage(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		return png.Encode(w, img)
	}
	return errors.Errorf("unsupported screenshot format %q", ext)
}

func writeScreenshot(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImage(f, filepath.Ext(path), img); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrapf(err, "screenshot %s", path)
	}
	return f.Close()
}
