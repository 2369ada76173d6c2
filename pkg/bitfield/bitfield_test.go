// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitfield

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageHeader struct {
	ParametersSaveable bool
	SubpageFormat      bool
	PageCode           uint8 `bitfield:"6"`
	PageLength         uint8
}

type descriptor struct {
	Last      bool
	Reserved0 uint8 `bitfield:"7"`
	Reserved1 [5]byte
	Tag       uint16
	LBA       uint64
	Count     uint64
}

type nested struct {
	Header      pageHeader
	Flag        uint8 `bitfield:"3"`
	Pad         uint8 `bitfield:"5"`
	Wide        [12]byte
	Odd         uint64 `bitfield:"40"`
	Descriptors [2]descriptor
	Words       [3]uint16
}

type skipped struct {
	A      uint8
	hidden int
	Ignore string `bitfield:"-"`
	B      uint16 `bitfield:"12"`
	C      uint8  `bitfield:"4"`
}

const nestedHex = "c8a1" + "f8" + "000102030405060708090a0b" + "fedcba9876" +
	"8001020304051234" + "0000000000000001" + "0000000000000002" +
	"7f0102030405abcd" + "ffffffffffffffff" + "0102030405060708" +
	"deadbeefcafe"

func TestSize(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(2, SizeOf(pageHeader{}))
	assert.Equal(24, SizeOf(descriptor{}))
	assert.Equal(74, SizeOf(&nested{}))
	assert.Equal(3, SizeOf(skipped{}))
}

func TestUnmarshalHeader(t *testing.T) {
	var h pageHeader
	rest, err := Unmarshal([]byte{0xC8, 0x12, 0xAA}, &h)
	require.NoError(t, err)
	assert.Equal(t, pageHeader{ParametersSaveable: true, SubpageFormat: true, PageCode: 0x08, PageLength: 0x12}, h)
	assert.Equal(t, []byte{0xAA}, rest)
}

func TestMarshalHeader(t *testing.T) {
	b, err := Marshal(pageHeader{SubpageFormat: true, PageCode: 0x3F, PageLength: 0xFF})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F, 0xFF}, b)
}

func TestMarshalTruncates(t *testing.T) {
	b := MustMarshal(pageHeader{PageCode: 0xFF})
	assert.Equal(t, []byte{0x3F, 0x00}, b)
}

func TestUnmarshalShortInput(t *testing.T) {
	var d descriptor
	rest, err := Unmarshal([]byte{0x80, 0, 0, 0, 0, 0, 0x12, 0x34}, &d)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, d.Last)
	assert.Equal(t, uint16(0x1234), d.Tag)
	assert.Zero(t, d.LBA)
	assert.Zero(t, d.Count)
}

func TestSkippedFields(t *testing.T) {
	var s skipped
	MustUnmarshal([]byte{0x01, 0xAB, 0xCD}, &s)
	assert.Equal(t, uint8(0x01), s.A)
	assert.Equal(t, uint16(0xABC), s.B)
	assert.Equal(t, uint8(0xD), s.C)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    interface{}
		hex  string
	}{
		{"header", &pageHeader{}, "8a13"},
		{"descriptor", &descriptor{}, "ff0102030405abcd0011223344556677" + "8899aabbccddeeff"},
		{"nested", &nested{}, nestedHex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := hex.DecodeString(tc.hex)
			require.NoError(t, err)
			require.Equal(t, SizeOf(tc.v), len(in))

			rest, err := Unmarshal(in, tc.v)
			require.NoError(t, err)
			assert.Empty(t, rest)

			out, err := Marshal(tc.v)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestNestedFields(t *testing.T) {
	in, _ := hex.DecodeString(nestedHex)
	var n nested
	MustUnmarshal(in, &n)

	assert := assert.New(t)
	assert.Equal(uint8(0x08), n.Header.PageCode)
	assert.Equal(uint8(0xA1), n.Header.PageLength)
	assert.Equal(uint8(7), n.Flag)
	assert.Equal(uint8(0x18), n.Pad)
	assert.Equal(uint64(0xfedcba9876), n.Odd)
	assert.Equal(byte(0x0b), n.Wide[11])
	assert.True(n.Descriptors[0].Last)
	assert.Equal(uint16(0x1234), n.Descriptors[0].Tag)
	assert.Equal(uint64(2), n.Descriptors[0].Count)
	assert.False(n.Descriptors[1].Last)
	assert.Equal(uint64(0xFFFFFFFFFFFFFFFF), n.Descriptors[1].LBA)
	assert.Equal([3]uint16{0xdead, 0xbeef, 0xcafe}, n.Words)
}

func TestUnalignedWideField(t *testing.T) {
	type unaligned struct {
		Lead  uint8 `bitfield:"4"`
		Bytes [2]byte
		Tail  uint8 `bitfield:"4"`
	}
	var u unaligned
	MustUnmarshal([]byte{0x1A, 0xBC, 0xD2}, &u)
	assert.Equal(t, uint8(1), u.Lead)
	assert.Equal(t, [2]byte{0xAB, 0xCD}, u.Bytes)
	assert.Equal(t, uint8(2), u.Tail)
	assert.Equal(t, []byte{0x1A, 0xBC, 0xD2}, MustMarshal(u))
}

func TestInvalidTypes(t *testing.T) {
	type badKind struct {
		S string
	}
	type badWidth struct {
		A uint8 `bitfield:"9"`
	}
	type notWhole struct {
		A uint8 `bitfield:"3"`
	}

	_, err := Marshal(badKind{})
	assert.Error(t, err)
	_, err = Marshal(badWidth{})
	assert.Error(t, err)
	_, err = Size(notWhole{})
	assert.Error(t, err)
	_, err = Unmarshal([]byte{0}, pageHeader{})
	assert.Error(t, err)
	assert.Panics(t, func() { MustMarshal(42) })
}
