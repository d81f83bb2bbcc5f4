// Package utils holds the small set of generic helpers shared by every
// package in this module: byte-slice (de)serialisation of fixed-layout
// structs and a couple of assertion helpers.
package utils

import (
	"bytes"
	"encoding/binary"
)

// Read decodes a little-endian T out of the front of content.
func Read[T any](content []byte, val *T) error {
	return binary.Read(bytes.NewReader(content), binary.LittleEndian, val)
}

// Write encodes val as little-endian bytes at the front of dst.
func Write[T any](dst []byte, val T) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
		panic(err)
	}
	copy(dst, buf.Bytes())
}

// ReadSlice decodes content as a run of fixed-size T records.
func ReadSlice[T any](content []byte, size int) []T {
	Assert(len(content)%size == 0)
	ret := make([]T, 0, len(content)/size)
	for len(content) > 0 {
		var ele T
		if err := Read(content, &ele); err != nil {
			panic(err)
		}
		ret = append(ret, ele)
		content = content[size:]
	}
	return ret
}

// Assert panics with the given message when cond is false. Reserved for
// invariants that indicate a programmer error rather than malformed input;
// malformed input goes through pkg/diag instead.
func Assert(cond bool, msg ...any) {
	if !cond {
		panic(assertion(msg))
	}
}

type assertion []any

func (a assertion) String() string {
	if len(a) == 0 {
		return "assertion failed"
	}
	s := ""
	for i, v := range a {
		if i > 0 {
			s += " "
		}
		s += toString(v)
	}
	return s
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "<value>"
}

// AlignUp rounds v up to the next multiple of align (align must be a power of two).
func AlignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Max returns the larger of a and b.
func Max[T int | uint64 | uint32](a, b T) T {
	if a > b {
		return a
	}
	return b
}
