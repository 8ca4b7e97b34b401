// Package h02 implements framing and decoding of the H02 GPS tracker
// wire protocol. A logical message on the wire is `*` + comma separated
// fields + `#`; messages may be concatenated and split at arbitrary
// points by the transport.
package h02

import (
	"bytes"
	"errors"
)

const (
	// StartDelimiter and EndDelimiter bound one message on the wire.
	StartDelimiter = '*'
	EndDelimiter   = '#'

	// DefaultMaxBuffer caps the unconsumed bytes one connection may
	// accumulate without completing a frame.
	DefaultMaxBuffer = 10000
)

// ErrBufferOverflow is returned by Feed when the unconsumed buffer
// exceeds the configured ceiling. The connection must be dropped.
var ErrBufferOverflow = errors.New("h02: frame buffer overflow")

// FramingMode selects how bytes outside a frame are treated.
type FramingMode string

const (
	// FramingStrict rejects any leading byte that is not a start
	// delimiter. Recommended for new deployments.
	FramingStrict FramingMode = "strict"
	// FramingTolerant skips noise up to the next start delimiter.
	// Some device firmware emits stray bytes between frames.
	FramingTolerant FramingMode = "tolerant"
)

// Reassembler recovers complete frames from a chunked byte stream.
// It is owned by exactly one connection and is not safe for
// concurrent use.
type Reassembler struct {
	buf       []byte
	maxBuffer int
	strict    bool
}

// NewReassembler creates a reassembler with the given unconsumed
// buffer ceiling (DefaultMaxBuffer when <= 0) and framing mode.
func NewReassembler(maxBuffer int, mode FramingMode) *Reassembler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Reassembler{
		maxBuffer: maxBuffer,
		strict:    mode != FramingTolerant,
	}
}

// Feed appends chunk to the internal buffer and returns the bodies of
// all frames it completes, in wire order, delimiters excluded. The
// returned slices are copies and remain valid after the next call.
// Frames already extracted are returned even when the remaining bytes
// produce an error; any error terminates the connection.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	cursor := 0
	for cursor < len(r.buf) {
		if r.buf[cursor] != StartDelimiter {
			if r.strict {
				r.trim(cursor)
				return frames, &DecodeError{
					Kind: KindMalformedFrame,
					Raw:  boundedPrefix(r.buf),
				}
			}
			next := bytes.IndexByte(r.buf[cursor:], StartDelimiter)
			if next < 0 {
				// Pure noise, nothing worth retaining.
				cursor = len(r.buf)
				break
			}
			cursor += next
		}
		end := bytes.IndexByte(r.buf[cursor:], EndDelimiter)
		if end < 0 {
			// Frame still incomplete, wait for more chunks.
			break
		}
		body := make([]byte, end-1)
		copy(body, r.buf[cursor+1:cursor+end])
		frames = append(frames, body)
		cursor += end + 1
	}

	r.trim(cursor)
	if len(r.buf) > r.maxBuffer {
		return frames, ErrBufferOverflow
	}
	return frames, nil
}

// Pending returns the number of unconsumed bytes retained for the
// next Feed call.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// trim discards everything before the cursor, keeping the unconsumed
// tail in place.
func (r *Reassembler) trim(cursor int) {
	if cursor == 0 {
		return
	}
	r.buf = r.buf[:copy(r.buf, r.buf[cursor:])]
}

// errPrefixLen bounds the raw bytes carried by decode errors for
// diagnostics.
const errPrefixLen = 20

func boundedPrefix(b []byte) []byte {
	if len(b) > errPrefixLen {
		b = b[:errPrefixLen]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
