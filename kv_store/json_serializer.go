package kv_store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	STORE_VERSION = 1
	STORE_MAGIC   = "FORMFILL_EXPORTER_KV"
)

// jsonHeader carries metadata identifying a key-value store file.
type jsonHeader struct {
	Version int    `json:"version"`
	Magic   string `json:"magic"`
	Created string `json:"created"`
}

// jsonEntry is the on-disk form of one key.
type jsonEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Updated string `json:"updated"`
}

type jsonStore struct {
	Header  jsonHeader  `json:"header"`
	Entries []jsonEntry `json:"entries"`
}

// validate checks that the header matches the expected version and magic string.
func (hdr *jsonHeader) validate() error {
	if hdr.Version != STORE_VERSION {
		return fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.Magic != STORE_MAGIC {
		return fmt.Errorf("invalid magic: %s", hdr.Magic)
	}
	return nil
}

// loadEntriesFromReader decodes a store file. Duplicate keys are rejected.
func loadEntriesFromReader(r io.Reader) (map[string]Entry, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var stored jsonStore
	if err := json.Unmarshal(content, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode store: %w", err)
	}
	if err := stored.Header.validate(); err != nil {
		return nil, fmt.Errorf("invalid store header: %w", err)
	}

	entries := make(map[string]Entry, len(stored.Entries))
	for _, e := range stored.Entries {
		if e.Key == "" {
			return nil, fmt.Errorf("entry with empty key")
		}
		updated, err := time.Parse(time.RFC3339, e.Updated)
		if err != nil {
			return nil, fmt.Errorf("failed to parse update time for %s: %w", e.Key, err)
		}
		if _, exists := entries[e.Key]; exists {
			return nil, fmt.Errorf("duplicate key: %s", e.Key)
		}
		entries[e.Key] = Entry{Value: e.Value, Updated: updated}
	}
	return entries, nil
}

// saveEntriesToWriter encodes entries as an indented JSON store file.
func saveEntriesToWriter(w io.Writer, entries map[string]Entry) error {
	out := jsonStore{
		Header: jsonHeader{
			Version: STORE_VERSION,
			Magic:   STORE_MAGIC,
			Created: time.Now().Format(time.RFC3339),
		},
		Entries: make([]jsonEntry, 0, len(entries)),
	}
	for key, e := range entries {
		out.Entries = append(out.Entries, jsonEntry{
			Key:     key,
			Value:   e.Value,
			Updated: e.Updated.Format(time.RFC3339),
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("file write error: %w", err)
	}
	return nil
}
