package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Snapshot is an immutable view of the configuration tree at one instant.
//
// Snapshots are produced by a configuration source (FileWatcher or tests),
// published through the Distributor, and superseded, never edited, by later
// snapshots. Callers must not mutate the maps returned by Raw.
//
// A Snapshot exposes the raw tree and path-scoped typed views. Paths use
// dotted notation ("legacy.http", "dev").
type Snapshot struct {
	v        *viper.Viper
	revision uint64
}

// NewSnapshot creates a snapshot from a settings tree.
//
// The revision is assigned by the Distributor on publication; snapshots
// created directly (for tests) report revision 0 until published.
func NewSnapshot(settings map[string]any) *Snapshot {
	v := viper.New()
	if settings != nil {
		// MergeConfigMap only fails on unreadable input; a plain map never does
		_ = v.MergeConfigMap(settings)
	}
	return &Snapshot{v: v}
}

// Revision returns the monotonic revision assigned on publication.
func (s *Snapshot) Revision() uint64 {
	return s.revision
}

// Raw returns the full configuration tree.
// The returned map is rebuilt on each call; callers must not mutate nested values.
func (s *Snapshot) Raw() map[string]any {
	return s.v.AllSettings()
}

// Sub returns a snapshot scoped to the given dotted path.
// Returns an empty snapshot if the path is absent, so typed decoding of a
// missing section yields zero values rather than an error.
func (s *Snapshot) Sub(path string) *Snapshot {
	sub := s.v.Sub(path)
	if sub == nil {
		return &Snapshot{v: viper.New(), revision: s.revision}
	}
	return &Snapshot{v: sub, revision: s.revision}
}

// Has reports whether the given dotted path is present in the tree.
func (s *Snapshot) Has(path string) bool {
	return s.v.IsSet(path)
}

// Decode unmarshals the section at the given dotted path into out.
// An empty path decodes the whole tree.
func (s *Snapshot) Decode(path string, out any) error {
	var section map[string]any
	if path == "" {
		section = s.v.AllSettings()
	} else {
		sub := s.v.Sub(path)
		if sub == nil {
			section = map[string]any{}
		} else {
			section = sub.AllSettings()
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: configDecodeHooks(),
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder for %q: %w", path, err)
	}

	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("failed to decode config section %q: %w", path, err)
	}

	return nil
}
