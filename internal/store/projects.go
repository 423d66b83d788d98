package store

import (
	"context"
	"sort"

	"github.com/cairnmem/cairn/internal/segment"
)

// ListProjects returns every known project id: projects with a
// committed shard plus projects that so far exist only in memory.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	persisted, err := s.archive.ListProjects()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(persisted))
	for _, id := range persisted {
		seen[id] = struct{}{}
	}
	s.mu.Lock()
	for id := range s.projects {
		seen[id] = struct{}{}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// StatsOutput summarizes one project across tiers.
type StatsOutput struct {
	ProjectID     string         `json:"project_id"`
	Working       int            `json:"working"`
	WorkingTokens int            `json:"working_tokens"`
	Stashed       int            `json:"stashed"`
	StashedTokens int            `json:"stashed_tokens"`
	Archived      int            `json:"archived"`
	Pinned        int            `json:"pinned"`
	ByType        map[string]int `json:"by_type"`
	Usage         Usage          `json:"usage"`
}

// Stats reports tier sizes, token counts, and a type breakdown for one
// project.
func (s *Store) Stats(ctx context.Context, projectID string) (*StatsOutput, error) {
	if err := validateProjectID(projectID); err != nil {
		return nil, err
	}
	p, err := s.getProject(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := &StatsOutput{ProjectID: projectID, ByType: make(map[string]int)}
	for _, seg := range p.active {
		out.Working++
		out.WorkingTokens += seg.Tokens
		out.ByType[string(seg.Type)]++
		if seg.Pinned {
			out.Pinned++
		}
	}

	persisted, err := s.archive.Load(p.id)
	if err != nil {
		return nil, err
	}
	for i := range persisted {
		seg := &persisted[i]
		switch seg.Tier {
		case segment.TierStashed:
			out.Stashed++
			out.StashedTokens += seg.Tokens
		case segment.TierArchive:
			out.Archived++
		}
		out.ByType[string(seg.Type)]++
		if seg.Pinned {
			out.Pinned++
		}
	}

	out.Usage = s.usageLocked(p)
	return out, nil
}
