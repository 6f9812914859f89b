// Package persist implements the on-disk envelope shared by the index and
// document store files: a fixed header (magic, format version, payload
// length), the payload itself, and a CRC-32 trailer over header plus
// payload. The checksum detects accidental corruption only; it is not a
// tamper seal.
package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies the file kind within the data directory.
type Magic uint32

const (
	// MagicIndex marks a serialized vector index file (ASCII "SDX1").
	MagicIndex Magic = 0x53445831
	// MagicDocuments marks a serialized document store file (ASCII "SDM1").
	MagicDocuments Magic = 0x53444D31
)

// FormatVersion is the current on-disk format version.
const FormatVersion uint32 = 1

// HeaderSize is the encoded header length in bytes.
const HeaderSize = 16

var (
	// ErrInvalidMagic means the file is not of the expected kind.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion means the file was written by an incompatible format.
	ErrInvalidVersion = errors.New("unsupported format version")
)

// Header precedes the payload in every data file.
// Layout: magic(4) version(4) payload length(8), little-endian.
type Header struct {
	Magic      Magic
	Version    uint32
	PayloadLen uint64
}

// WriteHeader encodes the header. Write it through a ChecksumWriter so the
// trailer covers it.
func WriteHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Magic))
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint64(buf[8:16], h.PayloadLen)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// ReadHeader decodes and validates the header against the expected magic
// and the supported format version.
func ReadHeader(r io.Reader, want Magic) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}

	h := Header{
		Magic:      Magic(binary.LittleEndian.Uint32(buf[0:4])),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		PayloadLen: binary.LittleEndian.Uint64(buf[8:16]),
	}
	if h.Magic != want {
		return Header{}, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, uint32(h.Magic))
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	return h, nil
}
