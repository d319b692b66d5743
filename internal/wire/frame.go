package wire

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxPayload is the server's default maximum frame payload size, in
// bytes. The client imposes no maximum beyond the codec's 65535-byte
// string-field ceiling.
const DefaultMaxPayload = 1024

// MinMaxPayload is the floor applied to any configured max payload.
const MinMaxPayload = 128

// ErrFrameTooLarge is returned by FrameReader.ReadFrame when an incoming
// frame's declared length exceeds the configured maximum payload.
type ErrFrameTooLarge struct {
	Length  int
	Maximum int
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("wire: frame of %d bytes exceeds max payload %d", e.Length, e.Maximum)
}

// FrameReader reads length-delimited frames off a byte stream. Each frame
// is prefixed by a 2-byte big-endian unsigned length. Reads are cancellable
// via context; a partial frame left in the internal buffer on cancellation
// is preserved for the next call to ReadFrame.
type FrameReader struct {
	r          *bufio.Reader
	maxPayload int

	// pending is the result channel of a read left in flight by a
	// cancelled ReadFrame; the next ReadFrame waits on it instead of
	// starting a second reader.
	pending chan frameResult
}

type frameResult struct {
	payload []byte
	err     error
}

// NewFrameReader wraps r. maxPayload <= 0 disables the payload size check
// (used on the client side, which trusts the codec's own 65535 ceiling).
func NewFrameReader(r io.Reader, maxPayload int) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), maxPayload: maxPayload}
}

// ReadFrame blocks until one full frame has been read, ctx is cancelled, or
// the underlying stream errors. On context cancellation the returned error
// wraps ctx.Err(); any bytes already consumed from the OS socket but not
// yet assembled into a frame remain buffered in r for the next call.
func (f *FrameReader) ReadFrame(ctx context.Context) ([]byte, error) {
	if f.pending == nil {
		done := make(chan frameResult, 1)
		go func() {
			payload, err := f.readFrame()
			done <- frameResult{payload, err}
		}()
		f.pending = done
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wire: read frame: %w", ctx.Err())
	case res := <-f.pending:
		f.pending = nil
		return res.payload, res.err
	}
}

func (f *FrameReader) readFrame() ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))

	if f.maxPayload > 0 && n > f.maxPayload {
		// Drain the declared payload so the stream stays framed even
		// though the caller is expected to close the connection.
		_, _ = io.CopyN(io.Discard, f.r, int64(n))
		return nil, &ErrFrameTooLarge{Length: n, Maximum: f.maxPayload}
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FrameWriter writes length-delimited frames to a byte stream.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes a single frame. payload must be at most 65535 bytes;
// the codec never produces longer frames, and WriteFrame returns an error
// without writing anything for a longer payload from any other caller.
func (f *FrameWriter) WriteFrame(ctx context.Context, payload []byte) error {
	if len(payload) > maxStringField {
		return fmt.Errorf("wire: frame payload of %d bytes exceeds %d", len(payload), maxStringField)
	}

	done := make(chan error, 1)
	go func() {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
		if _, err := f.w.Write(lenBuf[:]); err != nil {
			done <- err
			return
		}
		_, err := f.w.Write(payload)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wire: write frame: %w", ctx.Err())
	case err := <-done:
		return err
	}
}
