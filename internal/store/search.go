package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/gc"
	"github.com/cairnmem/cairn/internal/index"
	"github.com/cairnmem/cairn/internal/segment"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	snippetRadius      = 80
)

// SearchInput queries the stashed tier. All present criteria must
// match (AND semantics).
type SearchInput struct {
	ProjectID string
	Query     string
	FilePath  string
	TaskID    string
	Type      string
	Tag       string
	TopicID   string
	Limit     int
	// Restore moves the returned segments back to the working tier.
	Restore     bool
	IncludeText bool
}

// SearchItem is one ranked hit.
type SearchItem struct {
	Segment  segment.Summary `json:"segment"`
	Score    float64         `json:"score"`
	Snippet  string          `json:"snippet,omitempty"`
	Text     string          `json:"text,omitempty"`
	Restored bool            `json:"restored,omitempty"`
}

// SearchOutput lists the top hits. Total is the match count before the
// limit was applied.
type SearchOutput struct {
	Items []SearchItem `json:"items"`
	Total int          `json:"total"`
	Usage Usage        `json:"usage"`
}

// Search runs an indexed query over the stashed tier, ranks the
// matches, and returns the top hits. Returned segments are touched;
// with Restore they move back into the working tier and leave the
// index. The project lock is held exclusively because hits mutate
// refcounts and, on restore, the shard.
func (s *Store) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	if err := validateProjectID(input.ProjectID); err != nil {
		return nil, err
	}
	q := index.Query{
		Tokens:   index.Tokenize(input.Query),
		FilePath: input.FilePath,
		TaskID:   input.TaskID,
		Type:     input.Type,
		Tag:      segment.NormalizeTag(input.Tag),
		TopicID:  input.TopicID,
	}
	if q.Empty() {
		return nil, errors.NewValidation("search requires a query or at least one filter")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	p, err := s.getProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ids := p.index.Search(q)
	out := &SearchOutput{Total: len(ids)}
	if len(ids) == 0 {
		out.Usage = s.usageLocked(p)
		return out, nil
	}

	persisted, err := s.archive.Load(p.id)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(persisted))
	for i := range persisted {
		byID[persisted[i].ID] = i
	}

	now := s.now()
	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || persisted[i].Tier != segment.TierStashed {
			return nil, errors.NewConsistency(input.ProjectID,
				fmt.Sprintf("segment %q is indexed but missing from the archive shard", id))
		}
		hits = append(hits, hit{idx: i, score: rank(&persisted[i], q.Tokens, now, s.cfg.DecayHalfLifeSeconds)})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return persisted[hits[a].idx].ID < persisted[hits[b].idx].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	restored := make([]*segment.Segment, 0, len(hits))
	for _, h := range hits {
		seg := &persisted[h.idx]
		seg.Touch(now)
		item := SearchItem{
			Score:   h.score,
			Snippet: snippet(seg.Text, q.Tokens),
		}
		if input.IncludeText {
			item.Text = seg.Text
		}
		if input.Restore {
			seg.Tier = segment.TierWorking
			item.Restored = true
			restored = append(restored, seg)
		}
		item.Segment = seg.ToSummary()
		out.Items = append(out.Items, item)
	}

	// Touches and restores change tier/refcount state, so the shard is
	// rewritten before the in-memory view moves.
	kept := persisted
	if input.Restore {
		kept = make([]segment.Segment, 0, len(persisted))
		for i := range persisted {
			if persisted[i].Tier != segment.TierWorking {
				kept = append(kept, persisted[i])
			}
		}
	}
	if err := s.archive.Save(p.id, kept, now); err != nil {
		return nil, err
	}
	for _, seg := range restored {
		c := seg.Clone()
		p.index.Remove(c.ID)
		p.active[c.ID] = c
	}

	out.Usage = s.usageLocked(p)
	return out, nil
}

// rank scores one hit: keyword saturation plus recency decay plus a
// pinned boost. Match strength dominates so a stale exact hit still
// beats a fresh weak one.
func rank(seg *segment.Segment, tokens []string, now, halfLife int64) float64 {
	score := 0.0
	if len(tokens) > 0 {
		lower := strings.ToLower(seg.Text)
		n := 0
		for _, tok := range tokens {
			n += strings.Count(lower, tok)
		}
		score += 2.0 * float64(n) / float64(n+3)
	}
	score += gc.Decay(now-seg.LastTouchedAt, halfLife)
	if seg.Pinned {
		score += 0.5
	}
	return score
}

// snippet returns a short window of text around the first query token.
func snippet(text string, tokens []string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	at := -1
	for _, tok := range tokens {
		if i := strings.Index(lower, tok); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		at = 0
	}
	start := at - snippetRadius
	if start < 0 {
		start = 0
	}
	end := at + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	snip := strings.TrimSpace(text[start:end])
	if start > 0 {
		snip = "..." + snip
	}
	if end < len(text) {
		snip += "..."
	}
	return snip
}
