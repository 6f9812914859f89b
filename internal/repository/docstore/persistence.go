package docstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/domain/document"
	"github.com/semdex-io/semdex/internal/persist"
)

// record is the flat gob shape of a document. The aggregate keeps its
// fields unexported, so persistence owns its own mirror struct and
// rehydrates through Reconstruct.
type record struct {
	ID       string
	Title    string
	Text     string
	Authors  []string
	Year     int
	Venue    string
	Keywords []string
	URL      string
	Source   string
}

// Save serializes the table to path in internal id order, using the same
// envelope as the index file so the pair shares one corruption story.
func (s *Store) Save(path string) error {
	records := make([]record, len(s.docs))
	for i := range s.docs {
		d := &s.docs[i]
		records[i] = record{
			ID:       d.ID(),
			Title:    d.Title(),
			Text:     d.Text(),
			Authors:  d.Authors(),
			Year:     d.Year(),
			Venue:    d.Venue(),
			Keywords: d.Keywords(),
			URL:      d.URL(),
			Source:   d.Source(),
		}
	}

	var payload bytes.Buffer
	zw, err := zstd.NewWriter(&payload)
	if err != nil {
		return fmt.Errorf("init compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(records); err != nil {
		zw.Close()
		return fmt.Errorf("encode documents: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}

	return persist.WriteAtomic(path, func(w io.Writer) error {
		cw := persist.NewChecksumWriter(w)
		header := persist.Header{
			Magic:      persist.MagicDocuments,
			Version:    persist.FormatVersion,
			PayloadLen: uint64(payload.Len()),
		}
		if err := persist.WriteHeader(cw, header); err != nil {
			return err
		}
		if _, err := cw.Write(payload.Bytes()); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		return cw.WriteTrailer()
	})
}

// Load rebuilds a store from a file produced by Save. A missing file is
// reported as os.ErrNotExist; every other failure wraps
// domain.ErrCorruptIndex.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrCorruptIndex, path, err)
	}
	defer f.Close()

	cr := persist.NewChecksumReader(f)
	header, err := persist.ReadHeader(cr, persist.MagicDocuments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}

	limited := io.LimitReader(cr, int64(header.PayloadLen))
	zr, err := zstd.NewReader(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: init decompressor: %v", domain.ErrCorruptIndex, err)
	}
	var records []record
	decodeErr := gob.NewDecoder(zr).Decode(&records)
	zr.Close()
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", domain.ErrCorruptIndex, decodeErr)
	}
	if _, err := io.Copy(io.Discard, limited); err != nil {
		return nil, fmt.Errorf("%w: drain payload: %v", domain.ErrCorruptIndex, err)
	}
	if err := cr.VerifyTrailer(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptIndex, err)
	}

	s := NewWithCapacity(len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: record %d has empty document id", domain.ErrCorruptIndex, i)
		}
		doc := document.Reconstruct(
			rec.ID, rec.Title, rec.Text, rec.Authors, rec.Year,
			rec.Venue, rec.Keywords, rec.URL, rec.Source,
		)
		if err := s.Put(uint32(i), doc); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrCorruptIndex, i, err)
		}
	}
	return s, nil
}
