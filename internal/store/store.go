// Package store persists finalized sequences on disk. Each sequence owns
// one directory under the store root holding the original images, the
// per-variant output directories, a JSON log (the durable Result) and a GPX
// track derived from the exported photos.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geoseq/sequences-backend-go/internal/models"
)

// OutputVariant names one output subdirectory of a sequence.
type OutputVariant string

const (
	OutputRaw     OutputVariant = "final_raw"
	OutputNadir   OutputVariant = "final_nadir"
	OutputBlurred OutputVariant = "final_blurred"
)

// NormalizeName turns a user-facing sequence name into its storage key:
// lowercased, whitespace replaced with underscores.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Store manages the on-disk sequence layout under one root directory. The
// root is shared; each sequence owns its subtree exclusively.
type Store struct {
	root string
}

// New creates a store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// SequencePath returns the directory of a sequence.
func (s *Store) SequencePath(name string) string {
	return filepath.Join(s.root, NormalizeName(name))
}

// OriginalsPath returns the directory holding a sequence's source images.
func (s *Store) OriginalsPath(name string) string {
	return filepath.Join(s.SequencePath(name), "originals")
}

// OutputDir returns a sequence's output directory for one variant.
func (s *Store) OutputDir(name string, variant OutputVariant) string {
	return filepath.Join(s.SequencePath(name), string(variant))
}

// OutputPath returns the path of one output image in a variant directory.
func (s *Store) OutputPath(name string, variant OutputVariant, filename string) string {
	return filepath.Join(s.OutputDir(name, variant), filename)
}

// LogPath returns the path of the sequence's JSON log file.
func (s *Store) LogPath(name string) string {
	return filepath.Join(s.SequencePath(name), NormalizeName(name)+".json")
}

// GpxPath returns the path of the sequence's derived GPX file.
func (s *Store) GpxPath(name string) string {
	return filepath.Join(s.SequencePath(name), NormalizeName(name)+".gpx")
}

// CreateWorkspace creates the sequence directory tree. The directory acting
// as the sequence's exclusive subtree, an existing one means a finished or
// interrupted run with the same name and yields ErrAlreadyExists.
func (s *Store) CreateWorkspace(name string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &models.FileSystemError{Op: "mkdir", Path: s.root, Err: err}
	}

	base := s.SequencePath(name)
	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s: %w", NormalizeName(name), models.ErrAlreadyExists)
	}

	dirs := []string{
		base,
		s.OriginalsPath(name),
		filepath.Join(base, string(OutputRaw)),
		filepath.Join(base, string(OutputNadir)),
		filepath.Join(base, string(OutputBlurred)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &models.FileSystemError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return nil
}

// Persist writes the durable JSON log and the derived GPX track. Call only
// after every destination has been attempted; the log is the single source
// of truth for publish state.
func (s *Store) Persist(result *models.Result) error {
	name := result.Sequence.Name

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sequence log: %w", err)
	}
	if err := os.WriteFile(s.LogPath(name), data, 0o644); err != nil {
		return &models.FileSystemError{Op: "write", Path: s.LogPath(name), Err: err}
	}

	gpx, err := BuildGPX(result)
	if err != nil {
		return fmt.Errorf("build gpx: %w", err)
	}
	if err := os.WriteFile(s.GpxPath(name), gpx, 0o644); err != nil {
		return &models.FileSystemError{Op: "write", Path: s.GpxPath(name), Err: err}
	}
	return nil
}

// Load reads a sequence's durable Result back from its JSON log.
func (s *Store) Load(name string) (*models.Result, error) {
	data, err := os.ReadFile(s.LogPath(name))
	if err != nil {
		return nil, &models.FileSystemError{Op: "read", Path: s.LogPath(name), Err: err}
	}
	var result models.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode sequence log %s: %w", s.LogPath(name), err)
	}
	return &result, nil
}

// ListResults scans the store root and returns every completed sequence's
// durable Result, newest created first. Any sequence directory without its
// JSON log is an interrupted run and is deleted outright.
func (s *Store) ListResults() ([]models.Result, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Result{}, nil
	}
	if err != nil {
		return nil, &models.FileSystemError{Op: "readdir", Path: s.root, Err: err}
	}

	results := make([]models.Result, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		if _, err := os.Stat(s.LogPath(name)); err != nil {
			// Orphaned workspace from an interrupted finalize; reclaim it.
			if err := os.RemoveAll(s.SequencePath(name)); err != nil {
				return nil, &models.FileSystemError{Op: "remove", Path: s.SequencePath(name), Err: err}
			}
			continue
		}

		result, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Sequence.Created.After(results[j].Sequence.Created)
	})
	return results, nil
}

// ListAll returns one summary per completed sequence, newest created first,
// garbage-collecting interrupted runs along the way.
func (s *Store) ListAll() ([]models.Summary, error) {
	results, err := s.ListResults()
	if err != nil {
		return nil, err
	}
	summaries := make([]models.Summary, 0, len(results))
	for i := range results {
		summaries = append(summaries, models.Summarize(&results[i]))
	}
	return summaries, nil
}

// Remove deletes a sequence's directory tree unconditionally.
func (s *Store) Remove(name string) error {
	if err := os.RemoveAll(s.SequencePath(name)); err != nil {
		return &models.FileSystemError{Op: "remove", Path: s.SequencePath(name), Err: err}
	}
	return nil
}

// Reset deletes a not-yet-finalized sequence's working directory together
// with the nadir preview temp files. Safe to call repeatedly and on paths
// that no longer exist.
func (s *Store) Reset(descriptor *models.SequenceDescriptor) error {
	if err := os.RemoveAll(s.SequencePath(descriptor.Name)); err != nil {
		return &models.FileSystemError{Op: "remove", Path: s.SequencePath(descriptor.Name), Err: err}
	}
	RemovePreviewFiles(&descriptor.NadirPreview)
	return nil
}

// RemovePreviewFiles removes the temp logo and preview composites of a
// nadir preview step. Missing files are ignored.
func RemovePreviewFiles(preview *models.NadirPreview) {
	for _, path := range preview.Items {
		os.Remove(path)
	}
	if preview.LogoFile != "" {
		os.Remove(preview.LogoFile)
	}
}
