// Package state implements the OTA updater's durable state marker: a
// one-line file recording exactly one of {idle, installing, confirm_pending}.
// It is the only durable record of whether an apply is in flight across a
// crash or power loss.
package state

import (
	"errors"
	"os"
	"strings"

	"github.com/kaktoslabs/kaktos/pkg/fsutil"
)

// State is one of the durable updater lifecycle markers.
type State string

const (
	Idle           State = "idle"
	Installing     State = "installing"
	ConfirmPending State = "confirm_pending"
)

func (s State) Valid() bool {
	switch s {
	case Idle, Installing, ConfirmPending:
		return true
	default:
		return false
	}
}

// Store reads and writes the state marker file at Path.
type Store struct {
	Path string
}

func New(path string) Store {
	return Store{Path: path}
}

// Load reads the marker file. A missing file or unrecognized content is
// treated as Idle; recognized reports whether the on-disk content was one
// of the known tokens, so callers can decide whether to log a warning.
func (s Store) Load() (value State, recognized bool, err error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Idle, true, nil
		}
		return Idle, false, err
	}

	token := State(strings.TrimSpace(string(data)))
	if !token.Valid() {
		return Idle, false, nil
	}
	return token, true, nil
}

// Save writes the marker atomically so a crash mid-write never leaves a
// corrupt or empty state file behind.
func (s Store) Save(value State) error {
	return fsutil.WriteFileAtomic(s.Path, []byte(string(value)), 0o644)
}
