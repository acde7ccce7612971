// Package configstore keeps the active session configuration loaded from a
// met configuration file, with reload and rollback to earlier loads.
package configstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/psaab/metconf/pkg/config"
	"github.com/psaab/metconf/pkg/logging"
)

// Stats counts load attempts since the store was created.
type Stats struct {
	Loads    uint64
	Failures uint64
	// FailuresByStage is keyed by config.Stage.
	FailuresByStage map[string]uint64
	LastLoad        time.Time
	LastError       string
}

// Store manages the active configuration set.
type Store struct {
	mu       sync.RWMutex
	active   *HistoryEntry
	history  *History
	filePath string
	stats    Stats
	events   *logging.EventBuffer
}

// New creates a new config store that keeps up to historySize loads.
func New(filePath string, historySize int) *Store {
	if historySize < 1 {
		historySize = 1
	}
	return &Store{
		history:  NewHistory(historySize),
		filePath: filePath,
		stats:    Stats{FailuresByStage: make(map[string]uint64)},
	}
}

// SetEventBuffer records every load, failure and rollback into eb.
func (s *Store) SetEventBuffer(eb *logging.EventBuffer) {
	s.mu.Lock()
	s.events = eb
	s.mu.Unlock()
}

func (s *Store) emit(rec logging.EventRecord) {
	if s.events == nil {
		return
	}
	rec.Path = s.filePath
	s.events.Add(rec)
}

func eventCounts(rec *logging.EventRecord, cs *config.ConfigSet) {
	rec.Daemons = cs.Len(config.KindDaemon)
	rec.Processes = cs.Len(config.KindProcess)
	rec.Visis = cs.Len(config.KindVisi)
	rec.Tunables = cs.Len(config.KindTunable)
}

// Path returns the configuration file the store loads from.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads and validates the configuration file. On success the new set
// becomes active and is recorded in the history; on failure the previously
// active set stays in place.
func (s *Store) Load() error {
	src, cs, err := s.read()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.LastLoad = time.Now()
	if err != nil {
		stage := config.Stage(err)
		s.stats.Failures++
		s.stats.FailuresByStage[stage]++
		s.stats.LastError = err.Error()
		slog.Warn("config load failed", "path", s.filePath, "stage", stage, "err", err)
		s.emit(logging.EventRecord{
			Time:  s.stats.LastLoad,
			Type:  logging.EventFailure,
			Stage: stage,
			Error: err.Error(),
		})
		return err
	}

	entry := &HistoryEntry{
		ID:        uuid.New(),
		Config:    cs,
		Source:    src,
		Timestamp: s.stats.LastLoad,
		Comment:   s.filePath,
	}
	s.history.Push(entry)
	s.active = entry
	s.stats.Loads++
	s.stats.LastError = ""
	slog.Info("config loaded", "path", s.filePath, "generation", entry.ID,
		"daemons", cs.Len(config.KindDaemon), "processes", cs.Len(config.KindProcess),
		"visis", cs.Len(config.KindVisi), "tunables", cs.Len(config.KindTunable))
	rec := logging.EventRecord{Time: entry.Timestamp, Type: logging.EventLoad, Generation: entry.ID.String()}
	eventCounts(&rec, cs)
	s.emit(rec)
	return nil
}

func (s *Store) read() (string, *config.ConfigSet, error) {
	f, err := openLocked(s.filePath, os.O_RDONLY, unix.LOCK_SH)
	if err != nil {
		return "", nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	src, err := config.ReadSource(f)
	if err != nil {
		return "", nil, err
	}
	cs, err := config.Parse(src)
	if err != nil {
		return src, nil, fmt.Errorf("%s: %w", s.filePath, err)
	}
	return src, cs, nil
}

// Active returns the active configuration set, or nil before the first
// successful load.
func (s *Store) Active() *config.ConfigSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	return s.active.Config
}

// Generation returns the id of the active load.
func (s *Store) Generation() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return uuid.Nil, false
	}
	return s.active.ID, true
}

// Rollback makes an earlier load active again. n=0 is the most recent load,
// n=1 the one before it.
func (s *Store) Rollback(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.history.Get(n)
	if err != nil {
		return err
	}
	s.activate(entry)
	return nil
}

// RollbackTo makes the recorded load with the given generation id active
// again.
func (s *Store) RollbackTo(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.history.Find(id)
	if !ok {
		return fmt.Errorf("rollback %s: no such generation (have %d entries)", id, s.history.Len())
	}
	s.activate(entry)
	return nil
}

func (s *Store) activate(entry *HistoryEntry) {
	s.active = entry
	slog.Info("config rolled back", "generation", entry.ID, "loaded", entry.Timestamp.Format(time.RFC3339))
	rec := logging.EventRecord{Type: logging.EventRollback, Generation: entry.ID.String()}
	eventCounts(&rec, entry.Config)
	s.emit(rec)
}

// Save writes the active configuration to the store's file in canonical
// form.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return fmt.Errorf("no active configuration")
	}
	return WriteFile(s.filePath, []byte(s.active.Config.Format()))
}

// History returns all recorded loads, most recent first.
func (s *Store) History() []*HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.List()
}

// Stats returns a snapshot of the load counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.FailuresByStage = make(map[string]uint64, len(s.stats.FailuresByStage))
	for k, v := range s.stats.FailuresByStage {
		st.FailuresByStage[k] = v
	}
	return st
}

// HistoryLen returns the number of recorded loads.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len()
}

// HistoryLimit returns the number of loads kept for rollback.
func (s *Store) HistoryLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.MaxSize()
}

// ShowActive returns the active configuration in canonical form.
func (s *Store) ShowActive() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.Config.Format()
}

// ExportJSON exports the active config as JSON.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, fmt.Errorf("no active configuration")
	}
	return json.MarshalIndent(s.active.Config, "", "  ")
}

// ShowCompare returns the difference between the nth previous load and the
// active configuration in canonical form, with "-" for removed lines and
// "+" for added lines.
func (s *Store) ShowCompare(n int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return "", fmt.Errorf("no active configuration")
	}
	entry, err := s.history.Get(n)
	if err != nil {
		return "", err
	}

	oldLines := splitLines(entry.Config.Format())
	newLines := splitLines(s.active.Config.Format())

	// Build sets for O(n) diff
	oldMap := make(map[string]bool, len(oldLines))
	for _, line := range oldLines {
		oldMap[line] = true
	}
	newMap := make(map[string]bool, len(newLines))
	for _, line := range newLines {
		newMap[line] = true
	}

	var b strings.Builder

	for _, line := range oldLines {
		if !newMap[line] {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	for _, line := range newLines {
		if !oldMap[line] {
			fmt.Fprintf(&b, "+ %s\n", line)
		}
	}

	if b.Len() == 0 {
		return "[no changes]\n", nil
	}
	return b.String(), nil
}

// splitLines splits a string into non-empty lines.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
