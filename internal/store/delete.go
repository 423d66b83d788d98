package store

import (
	"context"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/segment"
)

// DeleteInput removes segments permanently, from any tier.
type DeleteInput struct {
	ProjectID  string
	SegmentIDs []string
}

// DeleteOutput itemizes deletions.
type DeleteOutput struct {
	Deleted []string    `json:"deleted"`
	Failed  []ItemError `json:"failed,omitempty"`
	Usage   Usage       `json:"usage"`
}

// Delete erases segments from the working tier, the stash, and the
// archive. The shard write commits before any in-memory state changes,
// so a failed write leaves everything intact.
func (s *Store) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
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

	persisted, err := s.archive.Load(p.id)
	if err != nil {
		return nil, err
	}
	inShard := make(map[string]struct{}, len(persisted))
	for i := range persisted {
		inShard[persisted[i].ID] = struct{}{}
	}

	out := &DeleteOutput{}
	doomed := make([]string, 0, len(input.SegmentIDs))
	fromActive := make([]*segment.Segment, 0, len(input.SegmentIDs))
	fromShard := make(map[string]struct{})
	for _, id := range input.SegmentIDs {
		if err := validateSegmentID(id); err != nil {
			out.Failed = append(out.Failed, ItemError{SegmentID: id, Error: err.Error()})
			continue
		}
		seg, inActive := p.active[id]
		_, inArchive := inShard[id]
		if !inActive && !inArchive {
			out.Failed = append(out.Failed, ItemError{SegmentID: id, Error: "segment not found"})
			continue
		}
		// An id can exist in both tiers when a working segment was
		// re-created over a stashed one; delete purges every copy.
		if inActive {
			fromActive = append(fromActive, seg)
		}
		if inArchive {
			fromShard[id] = struct{}{}
		}
		doomed = append(doomed, id)
	}

	if len(fromShard) > 0 {
		kept := make([]segment.Segment, 0, len(persisted))
		for _, seg := range persisted {
			if _, drop := fromShard[seg.ID]; !drop {
				kept = append(kept, seg)
			}
		}
		if err := s.archive.Save(p.id, kept, s.now()); err != nil {
			return nil, err
		}
		for i := range persisted {
			seg := &persisted[i]
			if _, drop := fromShard[seg.ID]; drop {
				if seg.Tier == segment.TierStashed {
					p.index.Remove(seg.ID)
				}
				p.graph.RemoveNode(seg.ID)
			}
		}
	}
	for _, seg := range fromActive {
		delete(p.active, seg.ID)
		p.graph.RemoveNode(seg.ID)
	}
	out.Deleted = doomed

	out.Usage = s.usageLocked(p)
	return out, nil
}
