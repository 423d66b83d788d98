package store

import (
	"context"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/segment"
)

// StashInput moves working segments to the stashed tier.
type StashInput struct {
	ProjectID  string
	SegmentIDs []string
}

// StashOutput itemizes what moved and what did not.
type StashOutput struct {
	Stashed     []string    `json:"stashed"`
	Failed      []ItemError `json:"failed,omitempty"`
	TokensFreed int         `json:"tokens_freed"`
	Usage       Usage       `json:"usage"`
}

// Stash moves segments out of the working tier into the searchable
// stash. The whole batch lands in one atomic shard write: either the
// shard on disk gains all movable segments or none, and the active set
// is only mutated after the write commits.
func (s *Store) Stash(ctx context.Context, input StashInput) (*StashOutput, error) {
	if err := validateProjectID(input.ProjectID); err != nil {
		return nil, err
	}
	if len(input.SegmentIDs) == 0 {
		return nil, errors.NewValidation("segment_ids is required")
	}

	p, err := s.getProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := &StashOutput{}
	var moving []*segment.Segment
	for _, id := range input.SegmentIDs {
		if err := validateSegmentID(id); err != nil {
			out.Failed = append(out.Failed, ItemError{SegmentID: id, Error: err.Error()})
			continue
		}
		seg, ok := p.active[id]
		if !ok {
			msg := "segment not found in working tier"
			if p.index.Contains(id) {
				msg = "segment is already stashed"
			}
			out.Failed = append(out.Failed, ItemError{SegmentID: id, Error: msg})
			continue
		}
		moving = append(moving, seg)
	}

	if len(moving) > 0 {
		persisted, err := s.archive.Load(p.id)
		if err != nil {
			return nil, err
		}
		now := s.now()
		// Re-stashing a previously restored segment must replace its
		// stale shard entry, not duplicate it.
		movingIDs := make(map[string]struct{}, len(moving))
		for _, seg := range moving {
			movingIDs[seg.ID] = struct{}{}
		}
		kept := persisted[:0]
		for _, seg := range persisted {
			if _, ok := movingIDs[seg.ID]; !ok {
				kept = append(kept, seg)
			}
		}
		persisted = kept
		for _, seg := range moving {
			c := seg.Clone()
			c.Tier = segment.TierStashed
			persisted = append(persisted, *c)
		}
		if err := s.archive.Save(p.id, persisted, now); err != nil {
			return nil, err
		}
		for _, seg := range moving {
			seg.Tier = segment.TierStashed
			p.index.Add(seg)
			delete(p.active, seg.ID)
			out.Stashed = append(out.Stashed, seg.ID)
			out.TokensFreed += seg.Tokens
		}
	}

	out.Usage = s.usageLocked(p)
	return out, nil
}
