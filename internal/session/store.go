package session

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nimda/routeros-brute/internal/credentials"
	zlog "github.com/rs/zerolog/log"
)

const (
	// DefaultDir is where session files are kept unless configured otherwise.
	DefaultDir = "sessions"
	// DefaultFreshness is how long an unfinished session stays resumable.
	DefaultFreshness = 24 * time.Hour

	fileSuffix = ".json"
)

// ErrNotFound is returned when no session file exists for an id.
var ErrNotFound = errors.New("session not found")

// WordlistHash hashes the ordered combo list.
func WordlistHash(combos []credentials.Credential) string {
	parts := make([]string, len(combos))
	for i, c := range combos {
		parts[i] = c.Username + ":" + c.Password
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:8]
}

// Fingerprint returns the session id for a target, its services and the
// combo list. Service order does not matter.
func Fingerprint(target string, services []string, combos []credentials.Credential) string {
	sorted := append([]string(nil), services...)
	sort.Strings(sorted)
	data := target + ":" + strings.Join(sorted, ":") + ":" + WordlistHash(combos)
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])[:12]
}

// Store keeps session records as JSON files in one directory.
type Store struct {
	dir       string
	freshness time.Duration
	now       func() time.Time
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{dir: dir, freshness: DefaultFreshness, now: time.Now}, nil
}

// SetFreshness changes the resume window.
func (s *Store) SetFreshness(d time.Duration) {
	if d > 0 {
		s.freshness = d
	}
}

// Dir returns the directory holding the session files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileSuffix)
}

// Create starts a new record for the run and saves it.
func (s *Store) Create(target string, services []string, combos []credentials.Credential, config map[string]any) (*Record, error) {
	now := s.now()
	rec := &Record{
		SessionID:             Fingerprint(target, services, combos),
		Target:                target,
		Services:              append([]string(nil), services...),
		WordlistHash:          WordlistHash(combos),
		TotalCombinations:     len(combos),
		SuccessfulCredentials: []Success{},
		StartTime:             now,
		LastUpdate:            now,
		Status:                StatusRunning,
		Config:                config,
	}
	if err := s.Save(rec); err != nil {
		return nil, err
	}
	zlog.Info().
		Str("session", rec.SessionID).
		Str("target", target).
		Int("combinations", rec.TotalCombinations).
		Msg("Created session")
	return rec, nil
}

// Load reads a record by id.
func (s *Store) Load(id string) (*Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", id, err)
	}
	return &rec, nil
}

// FindExisting loads the record matching the run's fingerprint.
func (s *Store) FindExisting(target string, services []string, combos []credentials.Credential) (*Record, error) {
	return s.Load(Fingerprint(target, services, combos))
}

// Save writes the record atomically.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, rec.SessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(rec.SessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Update applies a progress checkpoint and saves the record.
func (s *Store) Update(rec *Record, p Progress) error {
	rec.apply(p, s.now())
	return s.Save(rec)
}

// Complete marks the record finished and saves it.
func (s *Store) Complete(rec *Record) error {
	now := s.now()
	rec.Status = StatusCompleted
	rec.EndTime = &now
	rec.LastUpdate = now
	rec.EstimatedCompletion = nil
	if err := s.Save(rec); err != nil {
		return err
	}
	zlog.Info().
		Str("session", rec.SessionID).
		Int("tested", rec.TestedCombinations).
		Int("successes", len(rec.SuccessfulCredentials)).
		Msg("Session completed")
	return nil
}

// ShouldResume reports whether rec is unfinished and recent enough to resume.
func (s *Store) ShouldResume(rec *Record) bool {
	if rec == nil || rec.Status == StatusCompleted {
		return false
	}
	if rec.CurrentProgress >= 100 {
		return false
	}
	return s.now().Sub(rec.LastUpdate) <= s.freshness
}

// List returns all readable records, most recently updated first.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}
	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			zlog.Warn().Err(err).Str("file", name).Msg("Skipping unreadable session file")
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastUpdate.After(records[j].LastUpdate)
	})
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// CleanupOlderThan deletes records whose last update is more than days old
// and returns how many were removed.
func (s *Store) CleanupOlderThan(days int) (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	removed := 0
	for _, rec := range records {
		if !rec.LastUpdate.Before(cutoff) {
			continue
		}
		if err := s.Delete(rec.SessionID); err != nil {
			return removed, err
		}
		removed++
		zlog.Debug().Str("session", rec.SessionID).Time("last_update", rec.LastUpdate).Msg("Removed old session")
	}
	return removed, nil
}
