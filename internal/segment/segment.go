// Package segment defines the atomic unit of agent working memory and
// its lifecycle metadata.
package segment

// Type classifies what kind of context a segment holds.
type Type string

const (
	TypeMessage  Type = "message"
	TypeCode     Type = "code"
	TypeLog      Type = "log"
	TypeNote     Type = "note"
	TypeDecision Type = "decision"
	TypeSummary  Type = "summary"
)

// KnownTypes lists all valid segment types.
var KnownTypes = []Type{
	TypeMessage, TypeCode, TypeLog, TypeNote, TypeDecision, TypeSummary,
}

// ValidType reports whether t is a known segment type.
func ValidType(t Type) bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Tier is a segment's lifecycle stage. Transitions are one-directional
// except stashed -> working (explicit restore); archive is terminal.
type Tier string

const (
	TierWorking Tier = "working"
	TierStashed Tier = "stashed"
	TierArchive Tier = "archive"
)

// Generation classifies long-term survival. Promotion young -> old is
// sticky: later unreachability never demotes a segment.
type Generation string

const (
	GenYoung Generation = "young"
	GenOld   Generation = "old"
)

// Segment is a single unit of context owned by a project.
type Segment struct {
	// ID is a ULID, unique within a project, immutable once assigned
	ID string `json:"id"`

	// ProjectID is the owning project; segments never move across projects
	ProjectID string `json:"project_id"`

	// TaskID optionally groups segments into a working set
	TaskID string `json:"task_id,omitempty"`

	// Type is one of the KnownTypes
	Type Type `json:"type"`

	// Text is the opaque content blob
	Text string `json:"text"`

	// Tokens is the cached size estimate, computed once at creation/update
	Tokens int `json:"tokens"`

	// Pinned segments are never pruning candidates, regardless of score
	Pinned bool `json:"pinned"`

	// Tier is the current lifecycle stage
	Tier Tier `json:"tier"`

	// Generation reflects long-term survival (young/old)
	Generation Generation `json:"generation"`

	// SurvivalCount is the number of full GC cycles survived while reachable
	SurvivalCount int `json:"survival_count"`

	// Refcount counts explicit and implicit uses (retrieval hits, graph in-edges)
	Refcount int `json:"refcount"`

	// FilePath optionally links the segment to a source file
	FilePath string `json:"file_path,omitempty"`

	// LineStart/LineEnd optionally narrow FilePath to a line range
	LineStart int `json:"line_start,omitempty"`
	LineEnd   int `json:"line_end,omitempty"`

	// Tags is a list of tags for filtering
	Tags []string `json:"tags,omitempty"`

	// TopicID optionally groups segments by topic
	TopicID string `json:"topic_id,omitempty"`

	// CreatedAt is the Unix timestamp when the segment was created
	CreatedAt int64 `json:"created_at"`

	// LastTouchedAt is the Unix timestamp of the last read-through-use.
	// Passive indexing does not update it.
	LastTouchedAt int64 `json:"last_touched_at"`
}

// Touch records a read-through-use at the given Unix timestamp.
// LastTouchedAt is monotonically non-decreasing.
func (s *Segment) Touch(now int64) {
	if now > s.LastTouchedAt {
		s.LastTouchedAt = now
	}
	s.Refcount++
}

// Clone returns a deep copy of the segment.
func (s *Segment) Clone() *Segment {
	c := *s
	if s.Tags != nil {
		c.Tags = make([]string, len(s.Tags))
		copy(c.Tags, s.Tags)
	}
	return &c
}
