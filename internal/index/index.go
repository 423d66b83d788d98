// Package index maintains the inverted keyword index and per-field
// metadata indexes over stashed segments. The index is derived state:
// the archive shard is the source of truth and the index can always be
// rebuilt from it.
package index

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cairnmem/cairn/internal/segment"
)

// Query describes a candidate lookup. All present parts are combined
// with AND semantics: every keyword token must match, and every set
// filter must match.
type Query struct {
	Tokens   []string
	FilePath string
	TaskID   string
	Type     string
	Tag      string
	TopicID  string
}

// Empty reports whether the query constrains nothing.
func (q Query) Empty() bool {
	return len(q.Tokens) == 0 && q.FilePath == "" && q.TaskID == "" &&
		q.Type == "" && q.Tag == "" && q.TopicID == ""
}

// Manager is the in-memory index over one project's stashed segments.
// Posting sets are roaring bitmaps over a dense id<->ordinal mapping.
//
// Mutation is guarded by a write lock; queries take a read lock so
// concurrent readers always observe a consistent snapshot.
type Manager struct {
	mu sync.RWMutex

	ids  []string          // ordinal -> segment id ("" = freed)
	keys []entryKeys       // ordinal -> keys the entry was indexed with
	ords map[string]uint32 // segment id -> ordinal
	free []uint32          // reusable ordinals

	keyword map[string]*roaring.Bitmap
	byFile  map[string]*roaring.Bitmap
	byTask  map[string]*roaring.Bitmap
	byType  map[string]*roaring.Bitmap
	byTag   map[string]*roaring.Bitmap
	byTopic map[string]*roaring.Bitmap
}

// entryKeys records the posting keys an ordinal was indexed under.
// Removal must drop exactly these, not keys derived from whatever
// version of the segment the caller happens to hold.
type entryKeys struct {
	tokens []string
	file   string
	task   string
	typ    string
	tags   []string
	topic  string
}

// NewManager creates an empty index manager.
func NewManager() *Manager {
	m := &Manager{}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.ids = nil
	m.keys = nil
	m.ords = make(map[string]uint32)
	m.free = nil
	m.keyword = make(map[string]*roaring.Bitmap)
	m.byFile = make(map[string]*roaring.Bitmap)
	m.byTask = make(map[string]*roaring.Bitmap)
	m.byType = make(map[string]*roaring.Bitmap)
	m.byTag = make(map[string]*roaring.Bitmap)
	m.byTopic = make(map[string]*roaring.Bitmap)
}

// Add indexes a segment. Adding an already-indexed id first removes the
// stale entries, so Add is safe for re-stash after restore.
func (m *Manager) Add(s *segment.Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ord, ok := m.ords[s.ID]; ok {
		m.removeLocked(ord, s.ID)
	}
	ord := m.allocLocked(s.ID)

	k := entryKeys{
		tokens: Tokenize(s.Text),
		file:   s.FilePath,
		task:   s.TaskID,
		typ:    string(s.Type),
		topic:  s.TopicID,
	}
	for _, tag := range s.Tags {
		k.tags = append(k.tags, segment.NormalizeTag(tag))
	}

	for _, tok := range k.tokens {
		addPosting(m.keyword, tok, ord)
	}
	if k.file != "" {
		addPosting(m.byFile, k.file, ord)
	}
	if k.task != "" {
		addPosting(m.byTask, k.task, ord)
	}
	addPosting(m.byType, k.typ, ord)
	for _, tag := range k.tags {
		addPosting(m.byTag, tag, ord)
	}
	if k.topic != "" {
		addPosting(m.byTopic, k.topic, ord)
	}
	m.keys[ord] = k
}

// Remove drops all index entries for an id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ord, ok := m.ords[id]; ok {
		m.removeLocked(ord, id)
	}
}

func (m *Manager) removeLocked(ord uint32, id string) {
	k := m.keys[ord]

	for _, tok := range k.tokens {
		dropPosting(m.keyword, tok, ord)
	}
	if k.file != "" {
		dropPosting(m.byFile, k.file, ord)
	}
	if k.task != "" {
		dropPosting(m.byTask, k.task, ord)
	}
	dropPosting(m.byType, k.typ, ord)
	for _, tag := range k.tags {
		dropPosting(m.byTag, tag, ord)
	}
	if k.topic != "" {
		dropPosting(m.byTopic, k.topic, ord)
	}

	delete(m.ords, id)
	m.ids[ord] = ""
	m.keys[ord] = entryKeys{}
	m.free = append(m.free, ord)
}

// Rebuild replaces the entire index with entries for the given
// segments. Running it twice over the same input yields identical
// index contents.
func (m *Manager) Rebuild(segs []segment.Segment) {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()

	for i := range segs {
		m.Add(&segs[i])
	}
}

// Contains reports whether the id is indexed.
func (m *Manager) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ords[id]
	return ok
}

// Len returns the number of indexed segments.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ords)
}

// IDs returns all indexed segment ids in ordinal order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.ords))
	for _, id := range m.ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Search returns the ids matching the query, in ordinal order.
// Multi-token queries intersect per-token posting sets (AND), never
// union; an unknown token or filter value yields an empty result.
func (m *Manager) Search(q Query) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var acc *roaring.Bitmap
	intersect := func(b *roaring.Bitmap) bool {
		if b == nil {
			acc = roaring.New()
			return false
		}
		if acc == nil {
			acc = b.Clone()
		} else {
			acc.And(b)
		}
		return !acc.IsEmpty()
	}

	for _, tok := range q.Tokens {
		if !intersect(m.keyword[tok]) {
			return nil
		}
	}
	if q.FilePath != "" && !intersect(m.byFile[q.FilePath]) {
		return nil
	}
	if q.TaskID != "" && !intersect(m.byTask[q.TaskID]) {
		return nil
	}
	if q.Type != "" && !intersect(m.byType[q.Type]) {
		return nil
	}
	if q.Tag != "" && !intersect(m.byTag[segment.NormalizeTag(q.Tag)]) {
		return nil
	}
	if q.TopicID != "" && !intersect(m.byTopic[q.TopicID]) {
		return nil
	}

	if acc == nil {
		return nil
	}

	out := make([]string, 0, acc.GetCardinality())
	it := acc.Iterator()
	for it.HasNext() {
		out = append(out, m.ids[it.Next()])
	}
	return out
}

func (m *Manager) allocLocked(id string) uint32 {
	if n := len(m.free); n > 0 {
		ord := m.free[n-1]
		m.free = m.free[:n-1]
		m.ids[ord] = id
		m.ords[id] = ord
		return ord
	}
	ord := uint32(len(m.ids))
	m.ids = append(m.ids, id)
	m.keys = append(m.keys, entryKeys{})
	m.ords[id] = ord
	return ord
}

func addPosting(postings map[string]*roaring.Bitmap, key string, ord uint32) {
	b, ok := postings[key]
	if !ok {
		b = roaring.New()
		postings[key] = b
	}
	b.Add(ord)
}

func dropPosting(postings map[string]*roaring.Bitmap, key string, ord uint32) {
	b, ok := postings[key]
	if !ok {
		return
	}
	b.Remove(ord)
	if b.IsEmpty() {
		delete(postings, key)
	}
}
