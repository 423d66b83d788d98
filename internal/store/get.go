package store

import (
	"context"
	"fmt"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/segment"
)

// GetInput fetches one segment by id.
type GetInput struct {
	ProjectID string
	SegmentID string
	// IncludeText defaults to true.
	IncludeText *bool
}

// GetOutput is the fetched segment. Text is omitted when not requested.
type GetOutput struct {
	Segment segment.Summary `json:"segment"`
	Text    string          `json:"text,omitempty"`
}

// Get returns a segment from the working or stashed tier. A get is a
// use: it bumps refcount and last-touched, and for a stashed segment
// the touch is persisted back to the shard.
func (s *Store) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if err := validateProjectID(input.ProjectID); err != nil {
		return nil, err
	}
	if err := validateSegmentID(input.SegmentID); err != nil {
		return nil, err
	}

	p, err := s.getProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := s.now()
	if seg, ok := p.active[input.SegmentID]; ok {
		seg.Touch(now)
		return getOutput(seg, input.IncludeText), nil
	}

	if !p.index.Contains(input.SegmentID) {
		return nil, errors.NewSegmentNotFound(input.ProjectID, input.SegmentID)
	}

	persisted, err := s.archive.Load(p.id)
	if err != nil {
		return nil, err
	}
	for i := range persisted {
		if persisted[i].ID == input.SegmentID && persisted[i].Tier == segment.TierStashed {
			persisted[i].Touch(now)
			if err := s.archive.Save(p.id, persisted, now); err != nil {
				return nil, err
			}
			return getOutput(&persisted[i], input.IncludeText), nil
		}
	}

	// The index claims the segment exists but the shard disagrees:
	// derived state has drifted from the source of truth.
	return nil, errors.NewConsistency(input.ProjectID,
		fmt.Sprintf("segment %q is indexed but missing from the archive shard", input.SegmentID))
}

func getOutput(seg *segment.Segment, includeText *bool) *GetOutput {
	out := &GetOutput{Segment: seg.ToSummary()}
	if includeText == nil || *includeText {
		out.Text = seg.Text
	}
	return out
}
