package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// crc32Table is the IEEE polynomial table, hardware-accelerated on modern
// CPUs.
var crc32Table = crc32.MakeTable(crc32.IEEE)

// ChecksumWriter wraps an io.Writer and keeps a running CRC-32 over
// everything written through it.
type ChecksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

// NewChecksumWriter creates a checksumming writer.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{w: w, hash: crc32.New(crc32Table)}
}

// Write implements io.Writer.
func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		// hash.Hash32 never errors
		cw.hash.Write(p[:n])
	}
	return n, err
}

// Sum returns the current checksum value.
func (cw *ChecksumWriter) Sum() uint32 {
	return cw.hash.Sum32()
}

// WriteTrailer appends the running checksum to the underlying writer. The
// trailer itself is not part of the sum.
func (cw *ChecksumWriter) WriteTrailer() error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], cw.Sum())
	if _, err := cw.w.Write(buf[:]); err != nil {
		return fmt.Errorf("write checksum trailer: %w", err)
	}
	return nil
}

// ChecksumReader wraps an io.Reader and keeps a running CRC-32 over
// everything read through it.
type ChecksumReader struct {
	r    io.Reader
	hash hash.Hash32
}

// NewChecksumReader creates a checksumming reader.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, hash: crc32.New(crc32Table)}
}

// Read implements io.Reader.
func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}

// Sum returns the current checksum value.
func (cr *ChecksumReader) Sum() uint32 {
	return cr.hash.Sum32()
}

// VerifyTrailer reads the stored checksum that follows the payload from the
// underlying reader and compares it against the running sum. Call it only
// after the payload is fully consumed.
func (cr *ChecksumReader) VerifyTrailer() error {
	var buf [4]byte
	if _, err := io.ReadFull(cr.r, buf[:]); err != nil {
		return fmt.Errorf("read checksum trailer: %w", err)
	}
	expected := binary.LittleEndian.Uint32(buf[:])
	if actual := cr.Sum(); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch reports whether err is a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	var cme *ChecksumMismatchError
	return errors.As(err, &cme)
}
