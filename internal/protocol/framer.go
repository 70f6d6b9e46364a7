package protocol

import (
	"bufio"
	"errors"
	"io"
)

var (
	ErrLineTooLong    = errors.New("control line exceeds read limit")
	ErrPayloadPending = errors.New("payload bytes still owed")
)

// FrameState tells whether the stream is positioned on a control line or
// inside a declared binary payload.
type FrameState int

const (
	AwaitingLine FrameState = iota
	AwaitingBytes
)

// Framer splits one byte stream into control lines and exact-length binary
// payloads. While payload bytes are owed, ReadLine refuses to run.
type Framer struct {
	r     *bufio.Reader
	limit int
	owed  int64
}

func NewFramer(r io.Reader, limit int) *Framer {
	if limit <= 0 {
		limit = 32 * 1024
	}
	return &Framer{r: bufio.NewReaderSize(r, 4096), limit: limit}
}

func (f *Framer) State() FrameState {
	if f.owed > 0 {
		return AwaitingBytes
	}
	return AwaitingLine
}

// Owed reports how many payload bytes remain before the next line.
func (f *Framer) Owed() int64 { return f.owed }

// ReadLine returns the next line without its terminator. An over-long line is
// consumed up to its newline and reported as ErrLineTooLong so the stream
// stays usable.
func (f *Framer) ReadLine() ([]byte, error) {
	if f.owed > 0 {
		return nil, ErrPayloadPending
	}
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := f.r.ReadSlice('\n')
		// The limit applies to the content; leave room for "\r\n".
		if !tooLong && len(line)+len(chunk) <= f.limit+2 {
			line = append(line, chunk...)
		} else {
			tooLong = true
			line = nil
		}
		switch {
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			if line = trimEOL(line); len(line) > f.limit {
				return nil, ErrLineTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(line) > 0 || tooLong):
			return nil, io.ErrUnexpectedEOF
		default:
			return nil, err
		}
	}
}

// Expect switches the framer to AwaitingBytes for n bytes.
func (f *Framer) Expect(n int64) error {
	if f.owed > 0 {
		return ErrPayloadPending
	}
	if n > 0 {
		f.owed = n
	}
	return nil
}

// Payload returns a reader over the owed bytes. It reports io.EOF once they
// are consumed and io.ErrUnexpectedEOF if the stream ends first.
func (f *Framer) Payload() io.Reader { return payloadReader{f} }

// Discard drops whatever payload is still owed.
func (f *Framer) Discard() error {
	if f.owed == 0 {
		return nil
	}
	_, err := io.Copy(io.Discard, f.Payload())
	return err
}

type payloadReader struct{ f *Framer }

func (p payloadReader) Read(b []byte) (int, error) {
	if p.f.owed <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > p.f.owed {
		b = b[:p.f.owed]
	}
	n, err := p.f.r.Read(b)
	p.f.owed -= int64(n)
	if errors.Is(err, io.EOF) {
		if p.f.owed > 0 {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
	}
	return n, err
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
