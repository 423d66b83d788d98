package segment

// Summary represents a segment's metadata without the full text content.
// Used for browse and search surfaces to reduce data transfer.
type Summary struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	TaskID        string     `json:"task_id,omitempty"`
	Type          Type       `json:"type"`
	Tokens        int        `json:"tokens"`
	Pinned        bool       `json:"pinned"`
	Tier          Tier       `json:"tier"`
	Generation    Generation `json:"generation"`
	SurvivalCount int        `json:"survival_count"`
	Refcount      int        `json:"refcount"`
	FilePath      string     `json:"file_path,omitempty"`
	LineStart     int        `json:"line_start,omitempty"`
	LineEnd       int        `json:"line_end,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	TopicID       string     `json:"topic_id,omitempty"`
	CreatedAt     int64      `json:"created_at"`
	LastTouchedAt int64      `json:"last_touched_at"`
}

// ToSummary converts a Segment to a Summary by stripping the text content.
func (s *Segment) ToSummary() Summary {
	return Summary{
		ID:            s.ID,
		ProjectID:     s.ProjectID,
		TaskID:        s.TaskID,
		Type:          s.Type,
		Tokens:        s.Tokens,
		Pinned:        s.Pinned,
		Tier:          s.Tier,
		Generation:    s.Generation,
		SurvivalCount: s.SurvivalCount,
		Refcount:      s.Refcount,
		FilePath:      s.FilePath,
		LineStart:     s.LineStart,
		LineEnd:       s.LineEnd,
		Tags:          s.Tags,
		TopicID:       s.TopicID,
		CreatedAt:     s.CreatedAt,
		LastTouchedAt: s.LastTouchedAt,
	}
}
