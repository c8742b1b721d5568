// Copyright (C) 2026  betanet mixnode authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single length-prefixed frame. It is generous
// enough for the largest F1.2 Sphinx packet plus trailer, but still finite
// so a corrupt or hostile length prefix cannot be used to exhaust memory.
const MaxFrameBytes = 1 << 20 // 1 MiB

// FramedReader reads length-prefixed frames ([u32 BE length][payload]) off
// an io.Reader, the framing shared by every packet format in spec §3.
type FramedReader struct {
	r io.Reader
}

// NewFramedReader wraps r.
func NewFramedReader(r io.Reader) *FramedReader {
	return &FramedReader{r: r}
}

// ReadFrame reads one length-prefixed frame and returns its payload bytes
// (the bytes following the 4-byte length prefix).
func (f *FramedReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("wire: frame length %d exceeds max %d", n, MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return buf, nil
}

// FramedWriter writes length-prefixed frames to an io.Writer.
type FramedWriter struct {
	w io.Writer
}

// NewFramedWriter wraps w.
func NewFramedWriter(w io.Writer) *FramedWriter {
	return &FramedWriter{w: w}
}

// WriteFrame writes payload prefixed with its big-endian u32 length.
func (f *FramedWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return fmt.Errorf("wire: frame payload %d exceeds max %d", len(payload), MaxFrameBytes)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := f.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if _, err := f.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}
