// Package store is the authoritative owner of active segments and the
// entry point for every mutating operation. It executes the GC
// engine's plans, keeps the archive shards and the derived indexes in
// step, and serializes access per project.
package store

import (
	"crypto/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cairnmem/cairn/internal/archive"
	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/gc"
	"github.com/cairnmem/cairn/internal/index"
	"github.com/cairnmem/cairn/internal/segment"
)

// ItemError reports a per-segment failure inside a bulk operation.
// Bulk results are always itemized, never collapsed into one pass/fail.
type ItemError struct {
	SegmentID string `json:"segment_id"`
	Error     string `json:"error"`
}

// Store manages all projects. The active maps and indexes are caches:
// only the archive shards survive a restart.
type Store struct {
	mu       sync.Mutex
	cfg      *config.Config
	archive  *archive.Store
	engine   *gc.Engine
	projects map[string]*project

	// now is swappable in tests for deterministic ages.
	now func() int64

	clockMu  sync.Mutex
	lastTick int64
}

// project holds one project's in-memory state. Its lock is the coarse
// per-project exclusion: mutating operations take it exclusively so an
// overlapping sweep and stash can never interleave into a corrupted
// shard or index.
type project struct {
	mu     sync.Mutex
	id     string
	active map[string]*segment.Segment
	index  *index.Manager
	graph  *gc.Graph
	loaded bool
}

// Open creates a store rooted at baseDir. The archive lives at
// cfg.StorageRoot when set, otherwise baseDir/archive.
func Open(baseDir string, cfg *config.Config) (*Store, error) {
	root := cfg.StorageRoot
	if root == "" {
		root = filepath.Join(baseDir, "archive")
	}
	arch, err := archive.NewStore(root)
	if err != nil {
		return nil, err
	}
	s := &Store{
		cfg:      cfg,
		archive:  arch,
		engine:   gc.NewEngine(cfg),
		projects: make(map[string]*project),
	}
	s.now = s.tick
	return s, nil
}

// tick returns Unix time, bumped forward when needed so no two calls
// ever return the same value. Touch timestamps double as the recency
// order for root selection, and operations landing inside one wall
// second must not tie.
func (s *Store) tick() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	n := time.Now().Unix()
	if n <= s.lastTick {
		n = s.lastTick + 1
	}
	s.lastTick = n
	return n
}

// ensureProject returns the project, creating in-memory state on first
// use and hydrating the index from the project's shard.
func (s *Store) ensureProject(projectID string) (*project, error) {
	s.mu.Lock()
	p, ok := s.projects[projectID]
	if !ok {
		p = &project{
			id:     projectID,
			active: make(map[string]*segment.Segment),
			index:  index.NewManager(),
			graph:  gc.NewGraph(),
		}
		s.projects[projectID] = p
	}
	s.mu.Unlock()

	if err := p.ensureLoaded(s.archive); err != nil {
		return nil, err
	}
	return p, nil
}

// getProject returns an existing project: one with in-memory state or
// a committed shard. Unknown projects are a NotFound, not an implicit
// create.
func (s *Store) getProject(projectID string) (*project, error) {
	s.mu.Lock()
	_, ok := s.projects[projectID]
	s.mu.Unlock()
	if ok {
		return s.ensureProject(projectID)
	}

	persisted, err := s.archive.ListProjects()
	if err != nil {
		return nil, err
	}
	for _, id := range persisted {
		if id == projectID {
			return s.ensureProject(projectID)
		}
	}
	return nil, errors.NewProjectNotFound(projectID)
}

// ensureLoaded hydrates the index from the shard once. The index is
// derived state; the shard is the source of truth.
func (p *project) ensureLoaded(arch *archive.Store) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}

	persisted, err := arch.Load(p.id)
	if err != nil {
		return err
	}
	stashed := make([]segment.Segment, 0, len(persisted))
	for _, seg := range persisted {
		if seg.Tier == segment.TierStashed {
			stashed = append(stashed, seg)
		}
	}
	p.index.Rebuild(stashed)
	p.loaded = true
	return nil
}

// newULID generates a new ULID.
func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func validateProjectID(projectID string) error {
	if !segment.ValidID(projectID) {
		return errors.NewValidation("project_id must be a non-empty alphanumeric identifier")
	}
	return nil
}

func validateSegmentID(segmentID string) error {
	if !segment.ValidID(segmentID) {
		return errors.NewValidation("segment_id must be a non-empty alphanumeric identifier")
	}
	return nil
}
