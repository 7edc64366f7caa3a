package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"quire/internal/fileutil"
)

// Cookie is the persisted form of one browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is the on-disk session file.
type State struct {
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

// errCorruptState marks a state file that exists but cannot be used.
var errCorruptState = errors.New("session state unusable")

func readState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", errCorruptState)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptState, err)
	}
	if len(state.Cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies", errCorruptState)
	}
	return &state, nil
}

func writeState(path string, cookies []Cookie, now time.Time) error {
	data, err := json.MarshalIndent(State{SavedAt: now.UTC(), Cookies: cookies}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}
