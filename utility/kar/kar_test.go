// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devblok/harness/utility/kar"
	qt "github.com/frankban/quicktest"
	"golang.org/x/exp/mmap"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(c *qt.C, files map[string]string, order ...string) []byte {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	for _, name := range order {
		c.Assert(builder.Add(name, strings.NewReader(files[name])), qt.IsNil)
	}

	buf := bytes.NewBuffer([]byte{})
	written, err := builder.WriteTo(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{
		"test":  testString1,
		"test2": testString2,
	}, "test", "test2")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Names(), qt.DeepEquals, []string{"test", "test2"})
	c.Assert(ar.Header().Author, qt.Equals, "devblok")

	f, err := ar.Open("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Size(), qt.Equals, int64(len(testString2)))

	result := make([]byte, len(testString2))
	_, err = io.ReadFull(f, result)
	c.Assert(err, qt.IsNil)
	c.Assert(string(result), qt.Equals, testString2)
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	big := strings.Repeat(testString1, 4096)
	data := build(c, map[string]string{
		"test":  testString1,
		"big":   big,
		"empty": "",
	}, "test", "big", "empty")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	for name, want := range map[string]string{"test": testString1, "big": big, "empty": ""} {
		got, err := ar.ReadAll(name)
		c.Assert(err, qt.IsNil, qt.Commentf(name))
		c.Assert(string(got), qt.Equals, want, qt.Commentf(name))
	}

	_, err = ar.ReadAll("missing")
	c.Assert(err, qt.ErrorMatches, "missing: kar: file does not exist in archive")
}

func TestAddDuplicate(t *testing.T) {
	c := qt.New(t)
	builder, err := kar.NewBuilder(kar.Header{Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	c.Assert(builder.Add("test", strings.NewReader(testString1)), qt.IsNil)
	c.Assert(builder.Add("test", strings.NewReader(testString2)), qt.ErrorMatches, "test: kar: file already added")
	c.Assert(builder.Len(), qt.Equals, 1)
}

func TestAddConcurrently(t *testing.T) {
	c := qt.New(t)
	builder, err := kar.NewBuilder(kar.Header{Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := builder.Add(name, strings.NewReader(name+testString1)); err != nil {
				t.Error(err)
			}
		}(name)
	}
	wg.Wait()

	buf := bytes.NewBuffer([]byte{})
	_, err = builder.WriteTo(buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Names(), qt.HasLen, len(names))
	for _, name := range names {
		got, err := ar.ReadAll(name)
		c.Assert(err, qt.IsNil)
		c.Assert(string(got), qt.Equals, name+testString1)
	}
}

func TestOpenNotKar(t *testing.T) {
	c := qt.New(t)

	_, err := kar.Open(bytes.NewReader([]byte("TAR\x00aaaaaaaaaaaaaaaa")))
	c.Assert(err, qt.Equals, kar.ErrFileFormat)

	_, err = kar.Open(bytes.NewReader([]byte("KA")))
	c.Assert(err, qt.Equals, kar.ErrFileFormat)

	data := build(c, map[string]string{"test": testString1}, "test")
	_, err = kar.Open(bytes.NewReader(data[:20]))
	c.Assert(err, qt.Equals, kar.ErrFileFormat)
}

func TestOpenmmap(t *testing.T) {
	c := qt.New(t)
	dir, err := ioutil.TempDir("", "kartest")
	c.Assert(err, qt.IsNil)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "opentest.kar")
	data := build(c, map[string]string{
		"test/test1.txt": "this is a test",
		"test/test2.txt": "this is another test",
	}, "test/test1.txt", "test/test2.txt")
	c.Assert(ioutil.WriteFile(path, data, 0644), qt.IsNil)

	r, err := mmap.Open(path)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	ar, err := kar.Open(r)
	c.Assert(err, qt.IsNil)

	got, err := ar.ReadAll("test/test2.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "this is another test")
}
