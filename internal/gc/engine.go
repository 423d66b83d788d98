package gc

import (
	"sort"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/segment"
)

// Engine computes roots, reachability, scores, and eviction plans.
// It holds no segment state of its own.
type Engine struct {
	cfg *config.Config
}

// NewEngine creates a GC engine with the given configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// RootSpec describes what the agent is currently working on. The root
// set derived from it is ephemeral: recomputed every cycle, never
// persisted.
type RootSpec struct {
	// TaskID roots every segment of the current task.
	TaskID string
	// ActiveFiles roots segments linked to these file paths.
	ActiveFiles []string
	// Extra roots explicit segment ids the caller considers essential.
	Extra []string
}

// Roots derives the root set for a cycle from the active segments:
// all pinned segments, the current task's segments, segments linked to
// active files, the most recently touched RecentRootCount segments,
// and any explicit extras.
func (e *Engine) Roots(active map[string]*segment.Segment, spec RootSpec) []string {
	rootSet := make(map[string]struct{})

	files := make(map[string]struct{}, len(spec.ActiveFiles))
	for _, f := range spec.ActiveFiles {
		files[f] = struct{}{}
	}

	recent := make([]*segment.Segment, 0, len(active))
	for _, s := range active {
		if s.Pinned {
			rootSet[s.ID] = struct{}{}
		}
		if spec.TaskID != "" && s.TaskID == spec.TaskID {
			rootSet[s.ID] = struct{}{}
		}
		if s.FilePath != "" {
			if _, ok := files[s.FilePath]; ok {
				rootSet[s.ID] = struct{}{}
			}
		}
		recent = append(recent, s)
	}

	sort.Slice(recent, func(i, j int) bool {
		if recent[i].LastTouchedAt != recent[j].LastTouchedAt {
			return recent[i].LastTouchedAt > recent[j].LastTouchedAt
		}
		return recent[i].ID < recent[j].ID
	})
	n := e.cfg.RecentRootCount
	if n > len(recent) {
		n = len(recent)
	}
	for _, s := range recent[:n] {
		rootSet[s.ID] = struct{}{}
	}

	for _, id := range spec.Extra {
		if _, ok := active[id]; ok {
			rootSet[id] = struct{}{}
		}
	}

	roots := make([]string, 0, len(rootSet))
	for id := range rootSet {
		roots = append(roots, id)
	}
	sort.Strings(roots)
	return roots
}

// CycleResult reports what a full mark cycle observed.
type CycleResult struct {
	Roots      []string
	Reachable  map[string]struct{}
	Promoted   []string
	Candidates []*segment.Segment
}

// FullCycle runs root computation, a full mark over the reference
// graph, generational promotion, and a full candidate scan. Reachable
// segments gain a survival credit; once survival_count reaches the
// promotion threshold a young segment is promoted to old, exactly
// once. Promotion is sticky: becoming unreachable later resets
// neither survival_count nor generation.
//
// Candidates are the working-tier segments that are neither reachable
// nor pinned. The cycle mutates only GC metadata (survival_count,
// generation); eviction happens when the store executes the plan.
func (e *Engine) FullCycle(active map[string]*segment.Segment, graph *Graph, spec RootSpec) *CycleResult {
	roots := e.Roots(active, spec)
	reachable := graph.Reachable(roots)

	res := &CycleResult{
		Roots:     roots,
		Reachable: reachable,
	}

	for id, s := range active {
		if _, ok := reachable[id]; ok {
			s.SurvivalCount++
			if s.Generation == segment.GenYoung && s.SurvivalCount >= e.cfg.PromotionThreshold {
				s.Generation = segment.GenOld
				res.Promoted = append(res.Promoted, id)
			}
			continue
		}
		if !s.Pinned && s.Tier == segment.TierWorking {
			res.Candidates = append(res.Candidates, s)
		}
	}

	sort.Strings(res.Promoted)
	sort.Slice(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].ID < res.Candidates[j].ID
	})
	return res
}

// StepIncremental reconciles refcount bookkeeping for a bounded subset
// of segments against the reference graph: a segment's refcount never
// drops below its in-degree. This is the amortized maintenance that
// runs on normal operations so full cycles stay rare. Returns how many
// segments were touched.
func (e *Engine) StepIncremental(subset []*segment.Segment, graph *Graph) int {
	limit := e.cfg.IncrementalBatchSize
	if limit <= 0 || limit > len(subset) {
		limit = len(subset)
	}

	touched := 0
	for _, s := range subset[:limit] {
		if in := graph.InDegree(s.ID); s.Refcount < in {
			s.Refcount = in
			touched++
		}
	}
	return touched
}

// FullCycleDue reports whether token usage has crossed the soft
// threshold, meaning the next operation should run a full cycle
// instead of only incremental steps.
func (e *Engine) FullCycleDue(usedTokens int) bool {
	if e.cfg.TokenLimit <= 0 {
		return false
	}
	return float64(usedTokens) >= e.cfg.SoftThreshold*float64(e.cfg.TokenLimit)
}
