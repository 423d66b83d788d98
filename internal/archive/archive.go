// Package archive persists stashed and archived segments, one
// self-describing shard file per project. The shard is the sole
// durable source of truth: the keyword and metadata indexes are always
// re-derivable from it.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/segment"
)

// shardVersion is the current shard envelope version.
// Bump when the envelope layout changes.
const shardVersion = 1

// shardSuffix is appended to the project id to form the shard file name.
const shardSuffix = ".shard.zst"

// envelope is the on-disk shard layout: a zstd-compressed JSON document
// carrying every segment field, so a shard alone can rebuild all
// derived state.
type envelope struct {
	Version   int               `json:"version"`
	ProjectID string            `json:"project_id"`
	SavedAt   int64             `json:"saved_at"`
	Segments  []segment.Segment `json:"segments"`
}

// Store is the on-disk shard store rooted at a single directory.
type Store struct {
	root string
}

// NewStore creates a shard store rooted at root, creating the
// directory with restricted permissions if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.NewStorageIO("create archive root", err)
	}
	_ = os.Chmod(root, 0700)
	return &Store{root: root}, nil
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the shard file path for a project.
func (s *Store) Path(projectID string) string {
	return filepath.Join(s.root, projectID+shardSuffix)
}

// Save atomically replaces the project's shard with the given segments.
// The shard is written to a temp file in the same directory, fsynced,
// and renamed over the old one, so a crash mid-write leaves the
// previously committed shard byte-identical.
func (s *Store) Save(projectID string, segs []segment.Segment, savedAt int64) error {
	env := envelope{
		Version:   shardVersion,
		ProjectID: projectID,
		SavedAt:   savedAt,
		Segments:  segs,
	}

	path := s.Path(projectID)
	tmp, err := os.CreateTemp(s.root, projectID+shardSuffix+".tmp-*")
	if err != nil {
		return errors.NewStorageIO("create shard temp file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0600)

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return errors.NewStorageIO("create shard compressor", err)
	}
	if err := json.NewEncoder(zw).Encode(&env); err != nil {
		_ = zw.Close()
		return errors.NewStorageIO("encode shard", err)
	}
	if err := zw.Close(); err != nil {
		return errors.NewStorageIO("flush shard", err)
	}
	if err := tmp.Sync(); err != nil {
		return errors.NewStorageIO("sync shard", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewStorageIO("close shard temp file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewStorageIO("commit shard", err)
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(s.root); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// Load reads the project's shard. A missing shard is a valid empty
// result; a corrupted or partial shard surfaces a storage error naming
// rebuild as the recovery path instead of silently returning an
// incomplete segment set.
func (s *Store) Load(projectID string) ([]segment.Segment, error) {
	f, err := os.Open(s.Path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorageIO("open shard", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.NewStorageIO("open shard compressor", err)
	}
	defer zr.Close()

	var env envelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return nil, errors.NewStorageIO(fmt.Sprintf("decode shard for project %s", projectID), err)
	}
	if env.Version != shardVersion {
		return nil, errors.NewConsistency(projectID,
			fmt.Sprintf("shard version %d not supported (want %d)", env.Version, shardVersion))
	}
	if env.ProjectID != projectID {
		return nil, errors.NewConsistency(projectID,
			fmt.Sprintf("shard claims project %q", env.ProjectID))
	}
	return env.Segments, nil
}

// Delete removes the project's shard. Deleting a missing shard is a no-op.
func (s *Store) Delete(projectID string) error {
	err := os.Remove(s.Path(projectID))
	if err != nil && !os.IsNotExist(err) {
		return errors.NewStorageIO("delete shard", err)
	}
	return nil
}

// ListProjects returns the project ids with a committed shard, sorted.
// Leftover temp files from interrupted writes are ignored.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.NewStorageIO("read archive root", err)
	}

	var projects []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, shardSuffix) {
			continue
		}
		projects = append(projects, strings.TrimSuffix(name, shardSuffix))
	}
	sort.Strings(projects)
	return projects, nil
}
