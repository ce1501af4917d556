package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrCorrupt is returned by Unframe when the payload fails validation.
var ErrCorrupt = errors.New("codec: corrupt frame")

const (
	frameMagic   = "GCF"
	frameVersion = byte(1)
	checksumSize = 8
)

// Record is one persisted field: the field name, the codec tag of its value
// type and the encoded bytes.
type Record struct {
	Field string
	Tag   string
	Data  []byte
}

// Section groups the records of one property instance.
type Section struct {
	Name    string
	Records []Record
}

// Frame serializes sections into a self-checking binary blob.
func Frame(sections []Section) []byte {
	out := make([]byte, 0, 64)
	out = append(out, frameMagic...)
	out = append(out, frameVersion)
	out = binary.AppendUvarint(out, uint64(len(sections)))
	for _, s := range sections {
		out = appendBytes(out, []byte(s.Name))
		out = binary.AppendUvarint(out, uint64(len(s.Records)))
		for _, r := range s.Records {
			out = appendBytes(out, []byte(r.Field))
			out = appendBytes(out, []byte(r.Tag))
			out = appendBytes(out, r.Data)
		}
	}
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(out))
}

// Unframe parses a blob produced by Frame.
func Unframe(data []byte) ([]Section, error) {
	head := len(frameMagic) + 1
	if len(data) < head+checksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	body, sum := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if xxhash.Sum64(body) != binary.LittleEndian.Uint64(sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	if string(body[:len(frameMagic)]) != frameMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if body[len(frameMagic)] != frameVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorrupt, body[len(frameMagic)])
	}

	r := reader{buf: body[head:]}
	n := r.uvarint()
	sections := make([]Section, 0, min(n, 64))
	for i := uint64(0); i < n && r.err == nil; i++ {
		s := Section{Name: string(r.bytes())}
		count := r.uvarint()
		s.Records = make([]Record, 0, min(count, 64))
		for j := uint64(0); j < count && r.err == nil; j++ {
			s.Records = append(s.Records, Record{
				Field: string(r.bytes()),
				Tag:   string(r.bytes()),
				Data:  r.bytes(),
			})
		}
		sections = append(sections, s)
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(r.buf))
	}
	return sections, nil
}

func appendBytes(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

type reader struct {
	buf []byte
	err error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, k := binary.Uvarint(r.buf)
	if k <= 0 {
		r.err = fmt.Errorf("%w: bad varint", ErrCorrupt)
		return 0
	}
	r.buf = r.buf[k:]
	return v
}

func (r *reader) bytes() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.buf)) {
		r.err = fmt.Errorf("%w: length %d exceeds remaining %d", ErrCorrupt, n, len(r.buf))
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.buf = r.buf[n:]
	return out
}
