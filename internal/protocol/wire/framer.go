package wire

import (
	"bytes"
	"io"

	"cryptex/internal/domain"
)

// DefaultMaxFrame bounds the per-connection accumulator so a peer that never
// sends a delimiter cannot grow the buffer without limit.
const DefaultMaxFrame = 1 << 20

// Framer reassembles discrete frames from an unbounded byte stream. Frames
// are surfaced in exactly the order their bytes were written on the peer
// side, and never before the byte sequence up to their own delimiter has
// fully arrived. A Framer is not safe for concurrent use; each connection
// owns one.
type Framer struct {
	buf      bytes.Buffer
	maxFrame int
}

// NewFramer returns a framer with the given accumulator bound; maxFrame <= 0
// selects DefaultMaxFrame.
func NewFramer(maxFrame int) *Framer {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Framer{maxFrame: maxFrame}
}

// Feed appends p to the accumulator and extracts every complete
// delimiter-terminated span. Spans are surfaced byte for byte; only the
// delimiter itself is stripped, so a trailing field keeps exactly the bytes
// the peer wrote (a PEM block's final newline included). Empty spans
// (back-to-back delimiters) are skipped. Partial trailing data stays
// buffered for the next call.
func (f *Framer) Feed(p []byte) ([][]byte, error) {
	f.buf.Write(p)

	var frames [][]byte
	for {
		data := f.buf.Bytes()
		i := bytes.Index(data, []byte(Delimiter))
		if i < 0 {
			break
		}
		span := append([]byte(nil), data[:i]...)
		f.buf.Next(i + len(Delimiter))
		if len(span) == 0 {
			continue
		}
		frames = append(frames, span)
	}
	// Only undelimited residue counts against the bound.
	if f.buf.Len() > f.maxFrame {
		return nil, domain.ErrFrameTooLarge
	}
	return frames, nil
}

// Reader pulls complete frames from an io.Reader, one connection each.
type Reader struct {
	src     io.Reader
	framer  *Framer
	pending [][]byte
	chunk   []byte
}

// NewReader wraps src with delimiter-based framing.
func NewReader(src io.Reader, maxFrame int) *Reader {
	return &Reader{
		src:    src,
		framer: NewFramer(maxFrame),
		chunk:  make([]byte, 4096),
	}
}

// Next blocks until a complete frame is available and returns it. It returns
// the transport's error (io.EOF included) once buffered frames are drained.
func (r *Reader) Next() ([]byte, error) {
	for len(r.pending) == 0 {
		n, err := r.src.Read(r.chunk)
		if n > 0 {
			frames, ferr := r.framer.Feed(r.chunk[:n])
			if ferr != nil {
				return nil, ferr
			}
			r.pending = frames
		}
		if err != nil && len(r.pending) == 0 {
			return nil, err
		}
	}
	frame := r.pending[0]
	r.pending = r.pending[1:]
	return frame, nil
}

// NextEnvelope reads and decodes the next frame.
func (r *Reader) NextEnvelope() (Envelope, error) {
	frame, err := r.Next()
	if err != nil {
		return Envelope{}, err
	}
	return Decode(frame)
}
