package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/zeusync/gamecore/internal/core/spatial"
)

var (
	errShortBuffer = errors.New("short buffer")
	errInvalidUTF8 = errors.New("invalid utf-8")
)

var le = binary.LittleEndian

// RegisterBuiltins installs codecs for numeric primitives, strings and the
// spatial types.
func RegisterBuiltins(r *Registry) error {
	return errors.Join(
		Register(r, "bool", encodeBool, decodeBool),
		Register(r, "i8", func(v int8) []byte { return []byte{byte(v)} }, fixed(1, func(b []byte) int8 { return int8(b[0]) })),
		Register(r, "i16", func(v int16) []byte { return le.AppendUint16(nil, uint16(v)) }, fixed(2, func(b []byte) int16 { return int16(le.Uint16(b)) })),
		Register(r, "i32", func(v int32) []byte { return le.AppendUint32(nil, uint32(v)) }, fixed(4, func(b []byte) int32 { return int32(le.Uint32(b)) })),
		Register(r, "i64", func(v int64) []byte { return le.AppendUint64(nil, uint64(v)) }, fixed(8, func(b []byte) int64 { return int64(le.Uint64(b)) })),
		Register(r, "int", func(v int) []byte { return le.AppendUint64(nil, uint64(int64(v))) }, fixed(8, func(b []byte) int { return int(int64(le.Uint64(b))) })),
		Register(r, "u8", func(v uint8) []byte { return []byte{v} }, fixed(1, func(b []byte) uint8 { return b[0] })),
		Register(r, "u16", func(v uint16) []byte { return le.AppendUint16(nil, v) }, fixed(2, le.Uint16)),
		Register(r, "u32", func(v uint32) []byte { return le.AppendUint32(nil, v) }, fixed(4, le.Uint32)),
		Register(r, "u64", func(v uint64) []byte { return le.AppendUint64(nil, v) }, fixed(8, le.Uint64)),
		Register(r, "uint", func(v uint) []byte { return le.AppendUint64(nil, uint64(v)) }, fixed(8, func(b []byte) uint { return uint(le.Uint64(b)) })),
		Register(r, "f32", func(v float32) []byte { return le.AppendUint32(nil, math.Float32bits(v)) }, fixed(4, func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) })),
		Register(r, "f64", appendFloat64(nil), fixed(8, readFloat64)),
		RegisterChecked(r, "str", encodeString, decodeString),
		Register(r, "vec3", encodeVec3, fixed(24, decodeVec3)),
		Register(r, "quat", encodeQuat, fixed(32, decodeQuat)),
	)
}

// fixed wraps a decoder for a fixed-width encoding with an exact length check.
func fixed[V any](size int, read func([]byte) V) func([]byte) (V, error) {
	return func(b []byte) (V, error) {
		if len(b) != size {
			var zero V
			return zero, fmt.Errorf("%w: want %d bytes, got %d", errShortBuffer, size, len(b))
		}
		return read(b), nil
	}
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func decodeBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("%w: bad bool encoding", errShortBuffer)
	}
	return b[0] == 1, nil
}

func appendFloat64(dst []byte) func(float64) []byte {
	return func(v float64) []byte { return le.AppendUint64(dst, math.Float64bits(v)) }
}

func readFloat64(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }

// encodeString writes a uvarint byte length followed by the UTF-8 bytes of s
// as given. No byte order mark is added.
func encodeString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errInvalidUTF8
	}
	out := binary.AppendUvarint(make([]byte, 0, len(s)+binary.MaxVarintLen64), uint64(len(s)))
	return append(out, s...), nil
}

func decodeString(b []byte) (string, error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return "", fmt.Errorf("%w: bad string length", errShortBuffer)
	}
	if uint64(len(b)-k) != n {
		return "", fmt.Errorf("%w: string length %d, payload %d", errShortBuffer, n, len(b)-k)
	}
	s := b[k:]
	if !utf8.Valid(s) {
		return "", errInvalidUTF8
	}
	return string(s), nil
}

func encodeVec3(v spatial.Vec3) []byte {
	out := make([]byte, 0, 24)
	out = le.AppendUint64(out, math.Float64bits(v.X))
	out = le.AppendUint64(out, math.Float64bits(v.Y))
	return le.AppendUint64(out, math.Float64bits(v.Z))
}

func decodeVec3(b []byte) spatial.Vec3 {
	return spatial.Vec3{X: readFloat64(b[0:8]), Y: readFloat64(b[8:16]), Z: readFloat64(b[16:24])}
}

func encodeQuat(q spatial.Quat) []byte {
	out := make([]byte, 0, 32)
	out = le.AppendUint64(out, math.Float64bits(q.X))
	out = le.AppendUint64(out, math.Float64bits(q.Y))
	out = le.AppendUint64(out, math.Float64bits(q.Z))
	return le.AppendUint64(out, math.Float64bits(q.W))
}

func decodeQuat(b []byte) spatial.Quat {
	return spatial.Quat{X: readFloat64(b[0:8]), Y: readFloat64(b[8:16]), Z: readFloat64(b[16:24]), W: readFloat64(b[24:32])}
}
