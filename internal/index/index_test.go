package index

import (
	"reflect"
	"testing"

	"github.com/cairnmem/cairn/internal/segment"
)

func seg(id, text string) *segment.Segment {
	return &segment.Segment{
		ID:        id,
		ProjectID: "alpha",
		Type:      segment.TypeNote,
		Text:      text,
		Tier:      segment.TierStashed,
	}
}

func TestSearch_SingleToken(t *testing.T) {
	m := NewManager()
	m.Add(seg("01A", "jwt middleware notes"))
	m.Add(seg("01B", "database pooling notes"))

	got := m.Search(Query{Tokens: []string{"jwt"}})
	if !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search = %v, want [01A]", got)
	}
}

func TestSearch_MultiTokenIntersection(t *testing.T) {
	m := NewManager()
	m.Add(seg("01A", "alpha beta gamma"))
	m.Add(seg("01B", "alpha delta"))
	m.Add(seg("01C", "beta delta"))

	// "alpha beta" must be the intersection, never the union
	got := m.Search(Query{Tokens: []string{"alpha", "beta"}})
	if !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search(alpha AND beta) = %v, want [01A]", got)
	}

	// Unknown token empties the intersection
	got = m.Search(Query{Tokens: []string{"alpha", "nosuchtoken"}})
	if len(got) != 0 {
		t.Errorf("Search with unknown token = %v, want empty", got)
	}
}

func TestSearch_MetadataFilters(t *testing.T) {
	m := NewManager()

	a := seg("01A", "retry logic")
	a.TaskID = "task-1"
	a.Tags = []string{"Auth"}
	a.FilePath = "internal/retry.go"
	m.Add(a)

	b := seg("01B", "retry logic elsewhere")
	b.TaskID = "task-2"
	m.Add(b)

	got := m.Search(Query{Tokens: []string{"retry"}, TaskID: "task-1"})
	if !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search with task filter = %v, want [01A]", got)
	}

	// Tag lookup is case-insensitive via normalization
	got = m.Search(Query{Tag: "auth"})
	if !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search by tag = %v, want [01A]", got)
	}

	got = m.Search(Query{FilePath: "internal/retry.go", Type: string(segment.TypeNote)})
	if !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search by file+type = %v, want [01A]", got)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	m := NewManager()
	m.Add(seg("01A", "something"))

	if got := m.Search(Query{}); got != nil {
		t.Errorf("Search(empty) = %v, want nil", got)
	}
	if !(Query{}).Empty() {
		t.Error("Query{}.Empty() = false, want true")
	}
}

func TestRemove_DropsAllEntries(t *testing.T) {
	m := NewManager()
	s := seg("01A", "jwt middleware")
	s.Tags = []string{"auth"}
	m.Add(s)

	// Mutating the caller's copy must not matter: removal drops the
	// postings the id was indexed with, not whatever the caller holds.
	s.Text = "something else entirely"
	s.Tags = nil
	m.Remove("01A")

	if m.Contains("01A") {
		t.Error("Contains after Remove = true, want false")
	}
	if got := m.Search(Query{Tokens: []string{"jwt"}}); len(got) != 0 {
		t.Errorf("Search after Remove = %v, want empty", got)
	}
	if got := m.Search(Query{Tag: "auth"}); len(got) != 0 {
		t.Errorf("Tag search after Remove = %v, want empty", got)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestAdd_ReindexReplacesStaleEntries(t *testing.T) {
	m := NewManager()
	orig := seg("01A", "old content")
	orig.TaskID = "task-1"
	orig.Tags = []string{"auth"}
	m.Add(orig)

	updated := seg("01A", "new content")
	m.Add(updated)

	if got := m.Search(Query{Tokens: []string{"old"}}); len(got) != 0 {
		t.Errorf("stale token still matches: %v", got)
	}
	if got := m.Search(Query{TaskID: "task-1"}); len(got) != 0 {
		t.Errorf("stale task posting still matches: %v", got)
	}
	if got := m.Search(Query{Tag: "auth"}); len(got) != 0 {
		t.Errorf("stale tag posting still matches: %v", got)
	}
	if got := m.Search(Query{Tokens: []string{"new"}}); !reflect.DeepEqual(got, []string{"01A"}) {
		t.Errorf("Search(new) = %v, want [01A]", got)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	segs := []segment.Segment{
		*seg("01A", "alpha beta"),
		*seg("01B", "beta gamma"),
		*seg("01C", "gamma alpha"),
	}

	m := NewManager()
	m.Rebuild(segs)
	first := m.Search(Query{Tokens: []string{"alpha"}})
	firstIDs := m.IDs()

	m.Rebuild(segs)
	second := m.Search(Query{Tokens: []string{"alpha"}})
	secondIDs := m.IDs()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("search results differ across rebuilds: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(firstIDs, secondIDs) {
		t.Errorf("index contents differ across rebuilds: %v vs %v", firstIDs, secondIDs)
	}
}

func TestOrdinalReuse(t *testing.T) {
	m := NewManager()
	m.Add(seg("01A", "first"))
	m.Remove("01A")
	m.Add(seg("01B", "second"))

	got := m.Search(Query{Tokens: []string{"second"}})
	if !reflect.DeepEqual(got, []string{"01B"}) {
		t.Errorf("Search = %v, want [01B]", got)
	}
	if got := m.Search(Query{Tokens: []string{"first"}}); len(got) != 0 {
		t.Errorf("freed ordinal still matches old token: %v", got)
	}
}
