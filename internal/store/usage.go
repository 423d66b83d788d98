package store

// Usage level names. The soft level is when a full GC cycle becomes
// due; hard and critical signal increasingly urgent pressure to the
// caller.
const (
	LevelOK       = "ok"
	LevelSoft     = "soft"
	LevelHard     = "hard"
	LevelCritical = "critical"
)

// Usage summarizes working-tier token pressure for a project.
type Usage struct {
	UsedTokens int     `json:"used_tokens"`
	TokenLimit int     `json:"token_limit"`
	Ratio      float64 `json:"ratio"`
	Level      string  `json:"level"`
}

// usageLocked computes usage from the active set. Caller holds p.mu.
func (s *Store) usageLocked(p *project) Usage {
	used := 0
	for _, seg := range p.active {
		used += seg.Tokens
	}

	u := Usage{UsedTokens: used, TokenLimit: s.cfg.TokenLimit}
	if s.cfg.TokenLimit > 0 {
		u.Ratio = float64(used) / float64(s.cfg.TokenLimit)
	}
	switch {
	case u.Ratio >= s.cfg.CriticalThreshold:
		u.Level = LevelCritical
	case u.Ratio >= s.cfg.HardThreshold:
		u.Level = LevelHard
	case u.Ratio >= s.cfg.SoftThreshold:
		u.Level = LevelSoft
	default:
		u.Level = LevelOK
	}
	return u
}
