package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/loom/pkg/types"
)

const haltMarkerName = "EMERGENCY_HALT"

// FileStore is the Store implementation backed directly by the
// filesystem. It is the only type in this repository permitted to call
// os.* against the data directory.
type FileStore struct {
	dataDir string
}

// NewFileStore creates the on-disk layout described in spec §6 under
// dataDir if it does not already exist.
func NewFileStore(dataDir string) (*FileStore, error) {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "agents"),
		filepath.Join(dataDir, "work", "records"),
		filepath.Join(dataDir, "work", "state"),
		filepath.Join(dataDir, "locks"),
		filepath.Join(dataDir, "archive"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", d, err)
		}
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) agentPath(id string) string {
	return filepath.Join(s.dataDir, "agents", id+".json")
}

func (s *FileStore) workRecordPath(id string) string {
	return filepath.Join(s.dataDir, "work", "records", id+".json")
}

func (s *FileStore) workStatePath(id string) string {
	return filepath.Join(s.dataDir, "work", "state", id+".json")
}

func (s *FileStore) lockPath(workID string) string {
	return filepath.Join(s.dataDir, "locks", workID+".lock")
}

func (s *FileStore) haltPath() string {
	return filepath.Join(s.dataDir, haltMarkerName)
}

// writeJSONAtomic writes v as JSON to path via write-to-temp + rename,
// the one discipline every mutation in this package follows: the
// filesystem never observes a torn write.
func writeJSONAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	enc := json.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename into place %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func checkSchema(version int) error {
	if version > types.CurrentSchemaVersion {
		return ErrUnsupportedSchema
	}
	return nil
}

// Agents

func (s *FileStore) PutAgent(agent *types.AgentRecord) error {
	return writeJSONAtomic(s.agentPath(agent.ID), agent)
}

func (s *FileStore) GetAgent(id string) (*types.AgentRecord, error) {
	var a types.AgentRecord
	if err := readJSON(s.agentPath(id), &a); err != nil {
		return nil, err
	}
	if err := checkSchema(a.SchemaVersion); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *FileStore) ListAgents() ([]*types.AgentRecord, error) {
	dir := filepath.Join(s.dataDir, "agents")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	var out []*types.AgentRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var a types.AgentRecord
		if err := readJSON(filepath.Join(dir, e.Name()), &a); err != nil {
			continue // transient races (delete mid-scan) are not fatal to a list
		}
		out = append(out, &a)
	}
	return out, nil
}

func (s *FileStore) RemoveAgent(id string) error {
	if err := os.Remove(s.agentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove agent %s: %w", id, err)
	}
	return nil
}

// Work

func (s *FileStore) PutWork(record *types.WorkRecord, state *types.WorkState) error {
	if err := writeJSONAtomic(s.workRecordPath(record.ID), record); err != nil {
		return err
	}
	return writeJSONAtomic(s.workStatePath(state.WorkID), state)
}

func (s *FileStore) GetWorkRecord(id string) (*types.WorkRecord, error) {
	var r types.WorkRecord
	if err := readJSON(s.workRecordPath(id), &r); err != nil {
		return nil, err
	}
	if err := checkSchema(r.SchemaVersion); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileStore) GetWorkState(id string) (*types.WorkState, error) {
	var st types.WorkState
	if err := readJSON(s.workStatePath(id), &st); err != nil {
		return nil, err
	}
	if err := checkSchema(st.SchemaVersion); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *FileStore) ListWorkStates() ([]*types.WorkState, error) {
	dir := filepath.Join(s.dataDir, "work", "state")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list work state: %w", err)
	}
	var out []*types.WorkState
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var st types.WorkState
		if err := readJSON(filepath.Join(dir, e.Name()), &st); err != nil {
			continue
		}
		out = append(out, &st)
	}
	return out, nil
}

// CASWorkState reads the current on-disk state, verifies its version
// equals expectedVersion, then writes newState with version bumped to
// expectedVersion+1. The version bump happens here, not in the caller, so
// monotonicity holds even if a caller forgets to increment it.
func (s *FileStore) CASWorkState(id string, expectedVersion uint64, newState *types.WorkState) error {
	current, err := s.GetWorkState(id)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	bumped := *newState
	bumped.WorkID = id
	bumped.Version = expectedVersion + 1
	bumped.SchemaVersion = types.CurrentSchemaVersion
	return writeJSONAtomic(s.workStatePath(id), &bumped)
}

// Locks

func (s *FileStore) CreateLockExclusive(workID string, lock *types.ClaimLock) error {
	path := s.lockPath(workID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyHeld
		}
		return fmt.Errorf("failed to create lock %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(lock); err != nil {
		return fmt.Errorf("failed to write lock %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) DeleteLock(workID string, expectedOwner string) error {
	lock, err := s.ReadLock(workID)
	if err != nil {
		return err
	}
	if lock == nil {
		return ErrNotHeld
	}
	if lock.Owner != expectedOwner {
		return ErrOwnerMismatch
	}
	if err := os.Remove(s.lockPath(workID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete lock for %s: %w", workID, err)
	}
	return nil
}

// ReadLock returns nil, nil if no lock exists for workID.
func (s *FileStore) ReadLock(workID string) (*types.ClaimLock, error) {
	var lock types.ClaimLock
	err := readJSON(s.lockPath(workID), &lock)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (s *FileStore) ScanLocks() ([]*types.ClaimLock, error) {
	dir := filepath.Join(s.dataDir, "locks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan locks: %w", err)
	}
	var out []*types.ClaimLock
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		workID := strings.TrimSuffix(e.Name(), ".lock")
		lock, err := s.ReadLock(workID)
		if err != nil || lock == nil {
			// A lock file that fails to parse (or vanished mid-scan) is
			// skipped: it is not returned, so the stale-claim sweep does
			// not see or reclaim it.
			continue
		}
		out = append(out, lock)
	}
	return out, nil
}

// Retention

// ArchiveWork moves a terminal WorkState and its WorkRecord into
// archive/<YYYY-MM-DD>/<work_id>.json, combined into a single record, then
// removes the live copies.
func (s *FileStore) ArchiveWork(workID string, asOf time.Time) error {
	record, err := s.GetWorkRecord(workID)
	if err != nil {
		return err
	}
	state, err := s.GetWorkState(workID)
	if err != nil {
		return err
	}
	if !state.State.Terminal() {
		return fmt.Errorf("refusing to archive non-terminal work %s", workID)
	}

	dateDir := filepath.Join(s.dataDir, "archive", asOf.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	archived := struct {
		SchemaVersion int               `json:"schema_version"`
		Record        *types.WorkRecord `json:"record"`
		State         *types.WorkState  `json:"state"`
		ArchivedAt    time.Time         `json:"archived_at"`
	}{
		SchemaVersion: types.CurrentSchemaVersion,
		Record:        record,
		State:         state,
		ArchivedAt:    asOf,
	}

	if err := writeJSONAtomic(filepath.Join(dateDir, workID+".json"), &archived); err != nil {
		return err
	}
	if err := os.Remove(s.workStatePath(workID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove live state for %s: %w", workID, err)
	}
	if err := os.Remove(s.workRecordPath(workID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove live record for %s: %w", workID, err)
	}
	return nil
}

// Halt

func (s *FileStore) IsHalted() bool {
	_, err := os.Stat(s.haltPath())
	return err == nil
}

// Diagnostics

func (s *FileStore) DiskFree() (uint64, error) {
	return diskFree(s.dataDir)
}

func (s *FileStore) Close() error {
	return nil
}
