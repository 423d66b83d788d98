package gc

import (
	"math"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/segment"
)

// typeWeights orders segment types by how costly a false eviction is.
// Decisions and summaries distill other segments and are expensive to
// reconstruct; logs are cheap.
var typeWeights = map[segment.Type]float64{
	segment.TypeDecision: 1.0,
	segment.TypeSummary:  0.9,
	segment.TypeNote:     0.7,
	segment.TypeCode:     0.6,
	segment.TypeMessage:  0.4,
	segment.TypeLog:      0.1,
}

// TypeWeight returns the eviction-cost weight for a segment type.
// Unknown types score like messages.
func TypeWeight(t segment.Type) float64 {
	if w, ok := typeWeights[t]; ok {
		return w
	}
	return typeWeights[segment.TypeMessage]
}

// Decay returns the recency factor for a segment idle for ageSeconds,
// exponentially halving every halfLifeSeconds. Monotonically
// decreasing in age; 1.0 at age zero.
func Decay(ageSeconds, halfLifeSeconds int64) float64 {
	if ageSeconds <= 0 {
		return 1.0
	}
	if halfLifeSeconds <= 0 {
		return 0.0
	}
	return math.Exp2(-float64(ageSeconds) / float64(halfLifeSeconds))
}

// Score computes a segment's retention score at time now (Unix
// seconds). Lower score means more evictable. The shape is the
// contract: monotonically non-increasing in idle age, non-decreasing
// in refcount and type weight, and non-increasing across the
// young -> old generation transition (the default generation weight is
// negative). Weights come from configuration, never constants here.
//
// Pinned segments are never scored; callers exclude them upstream.
func Score(s *segment.Segment, now int64, w config.Weights, halfLifeSeconds int64) float64 {
	age := now - s.LastTouchedAt
	recency := Decay(age, halfLifeSeconds)

	// Refcount normalized to [0, 1) so one heavily referenced segment
	// cannot dwarf the other factors.
	ref := float64(s.Refcount) / float64(s.Refcount+1)

	gen := 0.0
	if s.Generation == segment.GenOld {
		gen = 1.0
	}

	return w.Recency*recency + w.Type*TypeWeight(s.Type) + w.Ref*ref + w.Generation*gen
}
