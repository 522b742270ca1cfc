package manifest

import (
	"errors"
	"os"

	"github.com/kaktoslabs/kaktos/pkg/fsutil"
)

// Store reads and writes the local manifest file: the record of what was
// last successfully applied to the device.
type Store struct {
	Path string
}

func NewStore(path string) Store {
	return Store{Path: path}
}

// Load returns the local manifest, or an Empty one if the file is absent or
// fails to parse — a corrupt or missing local manifest should never block
// an update, it just means "nothing is known to be installed yet".
func (s Store) Load() Manifest {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Empty()
	}
	m, _, err := Parse(data, "")
	if err != nil {
		return Empty()
	}
	return m
}

// Save writes m atomically, in the same wire format remote manifests use.
func (s Store) Save(m Manifest) error {
	body, err := Marshal(m, "", nil)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.Path, body, 0o644)
}

// Remove deletes the local manifest file, if any.
func (s Store) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
