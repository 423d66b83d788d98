package store

import (
	"context"
	"math"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/gc"
	"github.com/cairnmem/cairn/internal/segment"
)

// SweepInput runs one full GC cycle and executes the resulting plan.
type SweepInput struct {
	ProjectID string
	// TaskID and ActiveFiles describe the current focus; their
	// segments become roots for this cycle.
	TaskID      string
	ActiveFiles []string
	// ExtraRoots are explicit segment ids to protect this cycle.
	ExtraRoots []string
	// TargetTokens is how many working-tier tokens to free. Zero means
	// free enough to bring usage back under the soft threshold.
	TargetTokens int
}

// SweepOutput reports the plan and its per-segment execution outcome.
type SweepOutput struct {
	Plan        *gc.Plan    `json:"plan"`
	Stashed     []string    `json:"stashed,omitempty"`
	Archived    []string    `json:"archived,omitempty"`
	Promoted    []string    `json:"promoted,omitempty"`
	Failed      []ItemError `json:"failed,omitempty"`
	TokensFreed int         `json:"tokens_freed"`
	Usage       Usage       `json:"usage"`
}

// Sweep runs a full mark cycle, plans evictions against the target,
// and executes the plan. Planned stashes stay searchable; planned
// deletes go to the terminal archive tier, preserved in the shard but
// never indexed again. All evicted segments land in one atomic shard
// write.
func (s *Store) Sweep(ctx context.Context, input SweepInput) (*SweepOutput, error) {
	if err := validateProjectID(input.ProjectID); err != nil {
		return nil, err
	}
	if input.TargetTokens < 0 {
		return nil, errors.NewValidation("target_tokens must be non-negative")
	}

	p, err := s.getProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := s.now()
	res := s.engine.FullCycle(p.active, p.graph, gc.RootSpec{
		TaskID:      input.TaskID,
		ActiveFiles: input.ActiveFiles,
		Extra:       input.ExtraRoots,
	})

	target := input.TargetTokens
	if target == 0 {
		used := s.usageLocked(p).UsedTokens
		soft := int(math.Floor(s.cfg.SoftThreshold * float64(s.cfg.TokenLimit)))
		if used > soft {
			target = used - soft
		}
	}

	plan := gc.PlanSweep(p.id, res.Candidates, now, target, s.cfg)
	out := &SweepOutput{Plan: plan, Promoted: res.Promoted}

	evicting := make([]*segment.Segment, 0, len(plan.Items))
	actions := make(map[string]gc.Action, len(plan.Items))
	for _, item := range plan.Items {
		seg, ok := p.active[item.SegmentID]
		if !ok {
			out.Failed = append(out.Failed, ItemError{SegmentID: item.SegmentID, Error: "segment no longer in working tier"})
			continue
		}
		evicting = append(evicting, seg)
		actions[item.SegmentID] = item.Action
	}

	// All evictions commit in one shard write. One shard per project
	// means there is no per-segment write to fail independently, so a
	// storage error fails every planned eviction together; it is
	// reported per item below and nothing moves out of the working tier.
	if len(evicting) > 0 {
		persisted, err := s.archive.Load(p.id)
		if err != nil {
			return s.sweepAborted(p, out, evicting, err), nil
		}
		evictingIDs := make(map[string]struct{}, len(evicting))
		for _, seg := range evicting {
			evictingIDs[seg.ID] = struct{}{}
		}
		kept := persisted[:0]
		for _, seg := range persisted {
			if _, ok := evictingIDs[seg.ID]; !ok {
				kept = append(kept, seg)
			}
		}
		persisted = kept
		for _, seg := range evicting {
			c := seg.Clone()
			if actions[seg.ID] == gc.ActionDelete {
				c.Tier = segment.TierArchive
			} else {
				c.Tier = segment.TierStashed
			}
			persisted = append(persisted, *c)
		}
		if err := s.archive.Save(p.id, persisted, now); err != nil {
			return s.sweepAborted(p, out, evicting, err), nil
		}
		for _, seg := range evicting {
			delete(p.active, seg.ID)
			if actions[seg.ID] == gc.ActionDelete {
				seg.Tier = segment.TierArchive
				p.graph.RemoveNode(seg.ID)
				out.Archived = append(out.Archived, seg.ID)
			} else {
				seg.Tier = segment.TierStashed
				p.index.Add(seg)
				out.Stashed = append(out.Stashed, seg.ID)
			}
			out.TokensFreed += seg.Tokens
		}
	}

	out.Usage = s.usageLocked(p)
	return out, nil
}

// sweepAborted itemizes a failed shard commit across every planned
// eviction. The working tier is untouched, so the caller sees which
// segments were supposed to move and why none of them did.
func (s *Store) sweepAborted(p *project, out *SweepOutput, evicting []*segment.Segment, cause error) *SweepOutput {
	for _, seg := range evicting {
		out.Failed = append(out.Failed, ItemError{SegmentID: seg.ID, Error: cause.Error()})
	}
	out.Usage = s.usageLocked(p)
	return out
}
