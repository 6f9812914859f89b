package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/domain/document"
)

// JSONFile reads paper records from a local JSON file. The file holds either
// a bare array of records or an object with a "papers" array.
type JSONFile struct {
	path string
	log  *zap.Logger
}

// NewJSONFile creates a file source.
func NewJSONFile(path string, log *zap.Logger) *JSONFile {
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONFile{path: path, log: log}
}

// Name implements Source.
func (s *JSONFile) Name() string { return "jsonfile" }

// Fetch reads and validates the file. Records that fail validation are
// logged and dropped; only an unreadable or unparseable file is an error.
func (s *JSONFile) Fetch(ctx context.Context) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		doc, err := rec.toDocument(s.Name())
		if err != nil {
			s.log.Warn("dropping invalid record", zap.String("file", s.path), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeRecords(data []byte) ([]paperRecord, error) {
	var list []paperRecord
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapper struct {
		Papers []paperRecord `json:"papers"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Papers, nil
}
