// Package save implements the snapshot format of the store and the
// backends that persist it.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Key is the well-known persistence key every backend stores the snapshot under.
const Key = "pet_store"

// Error codes for snapshot failures.
const (
	CodeSnapshotCorrupt      = "SNAPSHOT_CORRUPT"
	CodeSnapshotIncompatible = "SNAPSHOT_INCOMPATIBLE"
	CodePersistFailed        = "PERSIST_FAILED"
)

// ErrNoSnapshot is returned by a Persister when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Persister reads and writes the raw snapshot document.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// SaveData is the JSON-serializable snapshot format.
type SaveData struct {
	Version string         `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Values  map[string]any `json:"values"`
}

// Encode serializes store values into a snapshot document.
func Encode(version string, values map[string]any) ([]byte, error) {
	data := SaveData{
		Version: version,
		SavedAt: time.Now().UTC(),
		Values:  values,
	}
	if data.Values == nil {
		data.Values = map[string]any{}
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, oops.Code(CodePersistFailed).Wrapf(err, "encoding snapshot")
	}
	return out, nil
}

// Decode parses a snapshot document. A document written by a different
// major version of the game content is rejected as incompatible.
func Decode(data []byte, version string) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, oops.Code(CodeSnapshotCorrupt).Wrapf(err, "decoding snapshot")
	}
	if sd.Values == nil {
		sd.Values = map[string]any{}
	}
	if err := checkCompatible(sd.Version, version); err != nil {
		return nil, err
	}
	return &sd, nil
}

// checkCompatible compares major versions. Unparseable versions on either
// side are compared as plain strings.
func checkCompatible(saved, running string) error {
	if saved == "" || running == "" {
		return nil
	}
	sv, err1 := semver.NewVersion(saved)
	rv, err2 := semver.NewVersion(running)
	if err1 != nil || err2 != nil {
		if saved != running {
			return oops.Code(CodeSnapshotIncompatible).
				With("saved", saved).
				With("running", running).
				Errorf("snapshot version %q does not match %q", saved, running)
		}
		return nil
	}
	if sv.Major() != rv.Major() {
		return oops.Code(CodeSnapshotIncompatible).
			With("saved", saved).
			With("running", running).
			Errorf("snapshot major version %d does not match %d", sv.Major(), rv.Major())
	}
	return nil
}

// Open returns the persister for a backend name: "file" or "sqlite".
// An empty path yields a nil persister, meaning persistence is disabled.
func Open(ctx context.Context, backend, path string) (Persister, error) {
	if path == "" {
		return nil, nil
	}
	switch backend {
	case "", "file":
		return NewFilePersister(path), nil
	case "sqlite":
		p, err := NewSQLitePersister(ctx, path)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, oops.Code(CodePersistFailed).
			With("backend", backend).
			Errorf("unknown save backend %q", backend)
	}
}
