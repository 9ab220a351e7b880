// Package filerepo stores every session record in one JSON document on local disk.
// It suits the single-operator dev server: each write rewrites the whole file.
package filerepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
)

var _ connections.Repo = (*FileRepo)(nil)

type FileRepo struct {
	path string
	mu   sync.Mutex
}

func New(path string) *FileRepo {
	return &FileRepo{path: path}
}

// document is the decoded store file. A flat single-record file written before
// records were keyed by session loads into legacy: every session without its own
// record reads it, and the first write or delete replaces it with the keyed layout.
type document struct {
	records map[string]*connections.Record
	legacy  *connections.Record
}

func (f *FileRepo) Read(_ context.Context, key string) (*connections.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	if rec, ok := doc.records[key]; ok {
		return rec, nil
	}
	return doc.legacy, nil
}

func (f *FileRepo) Write(_ context.Context, key string, rec *connections.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.records[key] = rec
	return f.save(doc.records)
}

func (f *FileRepo) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	_, ok := doc.records[key]
	if !ok && doc.legacy == nil {
		return nil
	}
	delete(doc.records, key)
	return f.save(doc.records)
}

func (f *FileRepo) load() (*document, error) {
	doc := &document{records: map[string]*connections.Record{}}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "read %s: %v", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "parse %s: %v", f.path, err)
	}
	if isLegacy(raw) {
		var rec connections.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.Wrapf(errors.ErrStore, "parse legacy record %s: %v", f.path, err)
		}
		doc.legacy = &rec
		return doc, nil
	}
	for key, v := range raw {
		var rec *connections.Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, errors.Wrapf(errors.ErrStore, "parse %s in %s: %v", key, f.path, err)
		}
		if rec != nil {
			doc.records[key] = rec
		}
	}
	return doc, nil
}

// isLegacy reports whether the top level holds record fields rather than session keys.
func isLegacy(raw map[string]json.RawMessage) bool {
	prefix := connections.Key("")
	for key := range raw {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (f *FileRepo) save(doc map[string]*connections.Record) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrapf(errors.ErrStore, "encode: %v", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrapf(errors.ErrStore, "create %s: %v", dir, err)
		}
	}
	tmp := fmt.Sprintf("%s.tmp", f.path)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(errors.ErrStore, "write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrapf(errors.ErrStore, "replace %s: %v", f.path, err)
	}
	return nil
}
