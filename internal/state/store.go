package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State records the outcome of the last mirror of each remote override root.
type State struct {
	Version int                    `json:"version"`
	Remotes map[string]RemoteState `json:"remotes"`
}

type RemoteState struct {
	LocalRoot    string     `json:"local_root"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	Downloaded   int        `json:"downloaded"`
	Removed      int        `json:"removed"`
	LastError    string     `json:"last_error,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
}

func Sample() State {
	return State{Version: 1, Remotes: map[string]RemoteState{}}
}

func Load(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Sample(), nil
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Remotes == nil {
		s.Remotes = map[string]RemoteState{}
	}
	return s, nil
}

func SaveAtomic(path string, s State) error {
	if s.Remotes == nil {
		s.Remotes = map[string]RemoteState{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic replace state: %w", err)
	}
	return nil
}
