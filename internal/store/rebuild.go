package store

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cairnmem/cairn/internal/index"
	"github.com/cairnmem/cairn/internal/segment"
)

// rebuildBatch is how many segments are indexed between context
// checks, so a deadline interrupts a large rebuild promptly.
const rebuildBatch = 256

// RebuildOutput reports one project's index rebuild.
type RebuildOutput struct {
	ProjectID string `json:"project_id"`
	Segments  int    `json:"segments"`
	Indexed   int    `json:"indexed"`
	// Complete is false when the context expired mid-rebuild and the
	// index holds only a prefix of the stashed segments.
	Complete bool `json:"complete"`
}

// Rebuild reconstructs a project's index from its archive shard. The
// shard is the source of truth, so rebuilding is always safe and
// running it twice yields the same index. It is the standard recovery
// for consistency errors.
func (s *Store) Rebuild(ctx context.Context, projectID string) (*RebuildOutput, error) {
	if err := validateProjectID(projectID); err != nil {
		return nil, err
	}
	p, err := s.getProject(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	persisted, err := s.archive.Load(p.id)
	if err != nil {
		return nil, err
	}

	out := &RebuildOutput{ProjectID: projectID, Segments: len(persisted), Complete: true}
	next := index.NewManager()
	for i := range persisted {
		if i%rebuildBatch == 0 && ctx.Err() != nil {
			out.Complete = false
			break
		}
		if persisted[i].Tier != segment.TierStashed {
			continue
		}
		next.Add(&persisted[i])
		out.Indexed++
	}
	p.index = next
	p.loaded = true
	return out, nil
}

// RebuildAll rebuilds every project that has a shard, a few in
// parallel. The first failure cancels the rest.
func (s *Store) RebuildAll(ctx context.Context) ([]*RebuildOutput, error) {
	projects, err := s.archive.ListProjects()
	if err != nil {
		return nil, err
	}

	outs := make([]*RebuildOutput, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, projectID := range projects {
		g.Go(func() error {
			out, err := s.Rebuild(gctx, projectID)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(outs, func(a, b int) bool { return outs[a].ProjectID < outs[b].ProjectID })
	return outs, nil
}
