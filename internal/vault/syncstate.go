package vault

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/taskvault/taskvault/internal/model"
)

// SyncStateFileName is the index document at the vault root.
const SyncStateFileName = ".sync-state.json"

const syncStateVersion = "1.0"

// syncEntry records where one entity's file currently lives.
type syncEntry struct {
	Path         string `json:"path"`
	EntityType   string `json:"entityType"`
	LastModified string `json:"lastModified"`
}

type syncDocument struct {
	Version  string               `json:"version"`
	LastSync string               `json:"lastSync"`
	Entities map[string]syncEntry `json:"entities"`
}

// syncState is the authoritative record of "where on disk does entity X
// currently live?". It is mutated only by the single export consumer, so
// no locking is needed.
type syncState struct {
	root    string
	entries map[string]syncEntry
	logger  *slog.Logger
}

// loadSyncState reads the index from the vault root. A missing or
// unparseable file falls back to an empty index; the next full export
// rebuilds it.
func loadSyncState(root string, logger *slog.Logger) *syncState {
	st := &syncState{root: root, entries: map[string]syncEntry{}, logger: logger}
	data, err := os.ReadFile(filepath.Join(root, SyncStateFileName))
	if os.IsNotExist(err) {
		return st
	}
	if err != nil {
		logger.Warn("reading sync state failed, starting empty", "error", err)
		return st
	}
	var doc syncDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("parsing sync state failed, starting empty", "error", err)
		return st
	}
	if doc.Entities != nil {
		st.entries = doc.Entities
	}
	return st
}

// pathOf returns the recorded path for an entity, or "".
func (st *syncState) pathOf(id string) string {
	return st.entries[id].Path
}

// record stores the entity's current path and persists the index.
func (st *syncState) record(id string, kind model.EntityType, relPath string) error {
	st.entries[id] = syncEntry{
		Path:         relPath,
		EntityType:   string(kind),
		LastModified: isoTime(time.Now()),
	}
	return st.save()
}

// remove drops the entity's entry and persists the index.
func (st *syncState) remove(id string) error {
	if _, ok := st.entries[id]; !ok {
		return nil
	}
	delete(st.entries, id)
	return st.save()
}

// save writes the index atomically: temp file in the same directory, then
// rename over the target.
func (st *syncState) save() error {
	doc := syncDocument{
		Version:  syncStateVersion,
		LastSync: isoTime(time.Now()),
		Entities: st.entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}

	target := filepath.Join(st.root, SyncStateFileName)
	tmp, err := os.CreateTemp(st.root, ".sync-state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating sync state temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing sync state: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing sync state: %w", err)
	}
	return nil
}
