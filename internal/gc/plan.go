package gc

import (
	"container/heap"
	"fmt"
	"strings"
	"time"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/segment"
)

// Action is what the store should do with a planned segment.
type Action string

const (
	// ActionStash moves the segment to the searchable stashed tier.
	ActionStash Action = "stash"
	// ActionDelete moves the segment to the terminal archive tier.
	ActionDelete Action = "delete"
)

// PlanItem is one planned eviction with its explanation.
type PlanItem struct {
	SegmentID string  `json:"segment_id"`
	Action    Action  `json:"action"`
	Tokens    int     `json:"tokens"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// Plan is the eviction plan for one sweep. The engine produces it; the
// store executes it transactionally per segment.
type Plan struct {
	ProjectID    string     `json:"project_id"`
	TargetTokens int        `json:"target_tokens"`
	TokensFreed  int        `json:"tokens_freed"`
	// Partial is set when the candidates could not cover the target,
	// so the caller knows the plan under-delivers.
	Partial bool       `json:"partial"`
	Items   []PlanItem `json:"items"`
}

// candHeap is a min-heap over candidate scores, used for partial
// ascending selection: heapify is O(n) and each pop O(log n), so
// selecting k evictions costs O(n + k log n) instead of a full sort.
type candHeap struct {
	segs   []*segment.Segment
	scores []float64
}

func (h *candHeap) Len() int            { return len(h.segs) }
func (h *candHeap) Less(i, j int) bool  { return h.scores[i] < h.scores[j] }
func (h *candHeap) Swap(i, j int) {
	h.segs[i], h.segs[j] = h.segs[j], h.segs[i]
	h.scores[i], h.scores[j] = h.scores[j], h.scores[i]
}
func (h *candHeap) Push(x any) { panic("push not used") }
func (h *candHeap) Pop() any {
	n := len(h.segs) - 1
	s := h.segs[n]
	h.segs = h.segs[:n]
	h.scores = h.scores[:n]
	return s
}

// PlanSweep selects candidates ascending by score until their
// cumulative tokens reach targetTokens or candidates run out.
// Candidates must already exclude reachable segments; pinned segments
// are skipped here regardless, as a hard invariant.
func PlanSweep(projectID string, candidates []*segment.Segment, now int64, targetTokens int, cfg *config.Config) *Plan {
	plan := &Plan{ProjectID: projectID, TargetTokens: targetTokens}
	if targetTokens <= 0 {
		return plan
	}

	h := &candHeap{}
	for _, s := range candidates {
		if s.Pinned {
			continue
		}
		h.segs = append(h.segs, s)
		h.scores = append(h.scores, Score(s, now, cfg.ScoreWeights, cfg.DecayHalfLifeSeconds))
	}
	heap.Init(h)

	for h.Len() > 0 && plan.TokensFreed < targetTokens {
		score := h.scores[0]
		s := heap.Pop(h).(*segment.Segment)

		action := ActionStash
		if score < cfg.DeleteScoreThreshold &&
			s.Generation == segment.GenOld &&
			s.SurvivalCount > cfg.DeleteSurvivalFloor {
			action = ActionDelete
		}

		plan.Items = append(plan.Items, PlanItem{
			SegmentID: s.ID,
			Action:    action,
			Tokens:    s.Tokens,
			Score:     score,
			Reason:    reason(s, now, cfg),
		})
		plan.TokensFreed += s.Tokens
	}

	plan.Partial = plan.TokensFreed < targetTokens
	return plan
}

// reason builds the human-readable explanation for evicting s,
// e.g. "unreachable + old generation + no references + idle 8h".
func reason(s *segment.Segment, now int64, cfg *config.Config) string {
	parts := []string{"unreachable"}
	if s.Generation == segment.GenOld {
		parts = append(parts, "old generation")
	}
	if s.Refcount == 0 {
		parts = append(parts, "no references")
	} else if s.Refcount <= 2 {
		parts = append(parts, "low refcount")
	}
	if age := now - s.LastTouchedAt; age > cfg.DecayHalfLifeSeconds {
		parts = append(parts, fmt.Sprintf("idle %s", (time.Duration(age)*time.Second).Round(time.Minute)))
	}
	return strings.Join(parts, " + ")
}
