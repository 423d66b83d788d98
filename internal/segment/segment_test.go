package segment

import "testing"

func TestValidType(t *testing.T) {
	for _, typ := range KnownTypes {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false, want true", typ)
		}
	}
	if ValidType("email") {
		t.Error("ValidType(\"email\") = true, want false")
	}
	if ValidType("") {
		t.Error("ValidType(\"\") = true, want false")
	}
}

func TestValidID(t *testing.T) {
	valid := []string{"alpha", "01HXYZ", "proj-1", "a_b-c", "A9"}
	for _, id := range valid {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "../etc", "a/b", "a.b", " alpha", "-lead", "_lead"}
	for _, id := range invalid {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true, want false", id)
		}
	}
}

func TestTouch(t *testing.T) {
	s := &Segment{LastTouchedAt: 100, Refcount: 2}

	s.Touch(200)
	if s.LastTouchedAt != 200 {
		t.Errorf("LastTouchedAt = %d, want 200", s.LastTouchedAt)
	}
	if s.Refcount != 3 {
		t.Errorf("Refcount = %d, want 3", s.Refcount)
	}

	// Monotonic: an earlier timestamp never rewinds the clock
	s.Touch(150)
	if s.LastTouchedAt != 200 {
		t.Errorf("LastTouchedAt = %d after stale touch, want 200", s.LastTouchedAt)
	}
	if s.Refcount != 4 {
		t.Errorf("Refcount = %d, want 4", s.Refcount)
	}
}

func TestClone(t *testing.T) {
	s := &Segment{ID: "01A", Tags: []string{"auth", "jwt"}}
	c := s.Clone()

	c.Tags[0] = "changed"
	if s.Tags[0] != "auth" {
		t.Error("Clone should deep-copy tags")
	}
	c.ID = "01B"
	if s.ID != "01A" {
		t.Error("Clone should not alias the original")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	// 4 words * 1.3 = 5.2 -> ceil 6
	if got := EstimateTokens("implement the sweep planner"); got != 6 {
		t.Errorf("EstimateTokens = %d, want 6", got)
	}
}

func TestToSummary_StripsText(t *testing.T) {
	s := &Segment{
		ID:        "01A",
		ProjectID: "alpha",
		Type:      TypeCode,
		Text:      "func main() {}",
		Tokens:    4,
		Tier:      TierWorking,
	}
	sum := s.ToSummary()
	if sum.ID != "01A" || sum.ProjectID != "alpha" || sum.Tokens != 4 {
		t.Errorf("Summary fields not copied: %+v", sum)
	}
	if sum.Tier != TierWorking {
		t.Errorf("Tier = %q, want %q", sum.Tier, TierWorking)
	}
}
