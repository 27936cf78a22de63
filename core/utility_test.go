// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	"github.com/devblok/harness/core"
	qt "github.com/frankban/quicktest"
)

func TestSliceUint32(t *testing.T) {
	c := qt.New(t)
	words := core.SliceUint32([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0, 0xff})
	c.Assert(words, qt.HasLen, 2)
	c.Assert(words[1], qt.Equals, uint32(1))
	c.Assert(core.SliceUint32(nil), qt.HasLen, 0)
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Medium(b *testing.B) {
	data := make([]byte, 1000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}
