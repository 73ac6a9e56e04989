package persist

import (
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-version"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gobuild/core/internal/fingerprint"
)

// encoder writes length-prefixed primitives in a fixed order, mirroring
// the element-by-element approach of execgraph's graph marshaler but
// without a schema-compiler behind it: callers on both ends must agree
// on field order, which is why every exported encode/decode pair below
// is kept next to its sibling. Primitives are framed with
// google.golang.org/protobuf/encoding/protowire's varint and
// length-delimited helpers rather than a full .proto-generated message,
// since this module has no protoc step available to regenerate .pb.go
// sources; protowire gives the same wire discipline without codegen.
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{}
}

func (e *encoder) uint64(v uint64) {
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) bytes(b []byte) {
	e.buf = protowire.AppendBytes(e.buf, b)
}

func (e *encoder) string(s string) {
	e.buf = protowire.AppendString(e.buf, s)
}

func (e *encoder) stringSlice(ss []string) {
	e.uint64(uint64(len(ss)))
	for _, s := range ss {
		e.string(s)
	}
}

func (e *encoder) time(t time.Time) {
	e.uint64(uint64(t.UTC().UnixNano()))
}

func (e *encoder) timeSlice(ts []time.Time) {
	e.uint64(uint64(len(ts)))
	for _, t := range ts {
		e.time(t)
	}
}

func (e *encoder) fingerprint(f fingerprint.Fingerprint) {
	e.buf = append(e.buf, f[:]...)
}

func (e *encoder) fingerprintSlice(fs []fingerprint.Fingerprint) {
	e.uint64(uint64(len(fs)))
	for _, f := range fs {
		e.fingerprint(f)
	}
}

// bytesRaw appends b with no length prefix, for fixed-size fields like
// the file magic.
func (e *encoder) bytesRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// finish returns the accumulated buffer and writes it to w in one call.
func (e *encoder) finish(w io.Writer) error {
	_, err := w.Write(e.buf)
	return err
}

// decoder consumes primitives from an in-memory buffer written by
// encoder. The persisted graph is small enough (one project's worth of
// artifact/transformer records) that reading it whole before decoding,
// rather than streaming token by token, keeps this side of the codec
// symmetric with encoder's buffer-then-write approach.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(buf []byte) *decoder {
	return &decoder{buf: buf}
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("persist: truncated or corrupt %s", what)
	}
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.buf[d.off:])
	if n < 0 {
		d.fail("varint")
		return 0
	}
	d.off += n
	return v
}

// bytesN reads exactly n bytes with no length prefix, for fixed-size
// fields like the file magic.
func (d *decoder) bytesN(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.fail("fixed-size field")
		return nil
	}
	out := append([]byte(nil), d.buf[d.off:d.off+n]...)
	d.off += n
	return out
}

func (d *decoder) bytes() []byte {
	if d.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.buf[d.off:])
	if n < 0 {
		d.fail("length-delimited field")
		return nil
	}
	d.off += n
	return append([]byte(nil), v...)
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n := protowire.ConsumeString(d.buf[d.off:])
	if n < 0 {
		d.fail("string field")
		return ""
	}
	d.off += n
	return v
}

func (d *decoder) stringSlice() []string {
	n := d.uint64()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.string()
	}
	return out
}

func (d *decoder) time() time.Time {
	v := d.uint64()
	if d.err != nil {
		return time.Time{}
	}
	return time.Unix(0, int64(v)).UTC()
}

func (d *decoder) timeSlice() []time.Time {
	n := d.uint64()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d.time()
	}
	return out
}

func (d *decoder) fingerprint() fingerprint.Fingerprint {
	var f fingerprint.Fingerprint
	raw := d.bytesN(len(f))
	if d.err != nil {
		return f
	}
	copy(f[:], raw)
	return f
}

func (d *decoder) fingerprintSlice() []fingerprint.Fingerprint {
	n := d.uint64()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]fingerprint.Fingerprint, n)
	for i := range out {
		out[i] = d.fingerprint()
	}
	return out
}

// parseFormatVersion wraps version.NewVersion with the specific error
// context of a persisted-graph stamp.
func parseFormatVersion(s string) (*version.Version, error) {
	v, err := version.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("persist: malformed format version %q: %w", s, err)
	}
	return v, nil
}
