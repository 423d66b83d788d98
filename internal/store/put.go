package store

import (
	"context"
	"fmt"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/segment"
)

// PutInput creates or updates one segment in the working tier.
type PutInput struct {
	ProjectID string
	// SegmentID is optional; empty means create with a fresh ULID.
	SegmentID string
	TaskID    string
	Type      string
	Text      string
	Pinned    bool
	FilePath  string
	LineStart int
	LineEnd   int
	Tags      []string
	TopicID   string
	// Refs are ids of segments this one refers to. Edges are
	// adjacency, not ownership; unknown targets are kept so the edge
	// resolves if the target appears later.
	Refs []string
}

// PutOutput returns the stored segment plus the pressure signal the
// caller needs to decide whether to sweep.
type PutOutput struct {
	Segment      segment.Summary `json:"segment"`
	Usage        Usage           `json:"usage"`
	FullCycleDue bool            `json:"full_cycle_due"`
}

// Put upserts a segment into a project's working tier and records its
// outgoing references. Every put runs one bounded incremental GC step
// so refcounts track the graph without waiting for a full cycle.
func (s *Store) Put(ctx context.Context, input PutInput) (*PutOutput, error) {
	if err := validateProjectID(input.ProjectID); err != nil {
		return nil, err
	}
	if !segment.ValidType(segment.Type(input.Type)) {
		return nil, errors.NewValidation("type must be one of: message, code, log, note, decision, summary")
	}
	if input.Text == "" {
		return nil, errors.NewValidation("text is required")
	}
	if input.SegmentID != "" {
		if err := validateSegmentID(input.SegmentID); err != nil {
			return nil, err
		}
	}
	for _, ref := range input.Refs {
		if err := validateSegmentID(ref); err != nil {
			return nil, err
		}
	}

	p, err := s.ensureProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := s.now()
	id := input.SegmentID
	if id == "" {
		id, err = newULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	tags := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		if n := segment.NormalizeTag(tag); n != "" {
			tags = append(tags, n)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}

	// A stashed segment keeps its id. Recreating it in the working tier
	// would leave two copies of one id, so the stashed one must be
	// restored or deleted first.
	if _, active := p.active[id]; !active && p.index.Contains(id) {
		return nil, errors.NewValidation(fmt.Sprintf("segment %q is stashed; restore or delete it before storing it again", id))
	}

	seg, exists := p.active[id]
	if exists {
		seg.TaskID = input.TaskID
		seg.Type = segment.Type(input.Type)
		seg.Text = input.Text
		seg.Tokens = segment.EstimateTokens(input.Text)
		seg.Pinned = input.Pinned
		seg.FilePath = input.FilePath
		seg.LineStart = input.LineStart
		seg.LineEnd = input.LineEnd
		seg.Tags = tags
		seg.TopicID = input.TopicID
		seg.Touch(now)
	} else {
		seg = &segment.Segment{
			ID:            id,
			ProjectID:     input.ProjectID,
			TaskID:        input.TaskID,
			Type:          segment.Type(input.Type),
			Text:          input.Text,
			Tokens:        segment.EstimateTokens(input.Text),
			Pinned:        input.Pinned,
			Tier:          segment.TierWorking,
			Generation:    segment.GenYoung,
			FilePath:      input.FilePath,
			LineStart:     input.LineStart,
			LineEnd:       input.LineEnd,
			Tags:          tags,
			TopicID:       input.TopicID,
			CreatedAt:     now,
			LastTouchedAt: now,
		}
		p.active[id] = seg
	}

	subset := []*segment.Segment{seg}
	for _, ref := range input.Refs {
		p.graph.AddEdge(id, ref)
		if target, ok := p.active[ref]; ok {
			subset = append(subset, target)
		}
	}
	s.engine.StepIncremental(subset, p.graph)

	usage := s.usageLocked(p)
	return &PutOutput{
		Segment:      seg.ToSummary(),
		Usage:        usage,
		FullCycleDue: s.engine.FullCycleDue(usage.UsedTokens),
	}, nil
}
