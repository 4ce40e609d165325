package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store reads and writes the provider rule file. Load never fails
// outward: a missing or corrupt file yields an empty snapshot so the
// engine keeps running and every document degrades to manual review.
type Store struct {
	path string
	log  *slog.Logger
}

func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log}
}

// Path returns the rule file location.
func (s *Store) Path() string { return s.path }

// Load reads the rule file and returns providers in declaration order.
func (s *Store) Load() Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("rule file unreadable", "path", s.path, "error", err)
		}
		return nil
	}
	snap, err := decodeOrdered(data)
	if err != nil {
		s.log.Warn("rule file malformed", "path", s.path, "error", err)
		return nil
	}
	return snap
}

// Save writes the snapshot back in order. The write is atomic: a temp
// file in the same directory is renamed over the target, so a crash
// mid-write never leaves a truncated rule file.
func (s *Store) Save(snap Snapshot) error {
	data, err := encodeOrdered(snap)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp rules file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close rules file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace rules file: %w", err)
	}
	return nil
}

// Upsert adds or updates one provider. New providers are appended, so
// they get the lowest priority; existing ones keep their position.
func (s *Store) Upsert(key string, rule Rule) error {
	snap := s.Load()
	for i := range snap {
		if snap[i].Key == key {
			snap[i].Rule = rule
			return s.Save(snap)
		}
	}
	snap = append(snap, Provider{Key: key, Rule: rule})
	return s.Save(snap)
}

// Delete removes a provider by key. Deleting an unknown key is a no-op.
func (s *Store) Delete(key string) error {
	snap := s.Load()
	out := snap[:0]
	for _, p := range snap {
		if p.Key != key {
			out = append(out, p)
		}
	}
	if len(out) == len(snap) {
		return nil
	}
	return s.Save(out)
}

// decodeOrdered walks the JSON token stream so object key order is
// preserved. encoding/json's map decoding would randomize it, and
// declaration order is the provider priority.
func decodeOrdered(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected top-level object, got %v", tok)
	}

	var snap Snapshot
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected provider key, got %v", keyTok)
		}
		var r Rule
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("provider %q: %w", key, err)
		}
		snap = append(snap, Provider{Key: key, Rule: r})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return snap, nil
}

func encodeOrdered(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, p := range snap {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		rule, err := json.MarshalIndent(p.Rule, "  ", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(rule)
	}
	if len(snap) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
