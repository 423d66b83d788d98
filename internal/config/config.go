package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Weights holds the scoring weights consumed by the GC engine.
// Lower score means more evictable; the generation weight defaults to a
// negative value so that old segments score lower or equal, never higher.
type Weights struct {
	Recency    float64 `json:"recency"`
	Type       float64 `json:"type"`
	Ref        float64 `json:"ref"`
	Generation float64 `json:"generation"`
}

// Config holds application configuration.
type Config struct {
	// TokenLimit is the context window budget the GC engine defends.
	TokenLimit int `json:"token_limit"`

	// SoftThreshold is the usage ratio at which a full GC cycle becomes
	// due; a sweep without an explicit target frees down to it.
	SoftThreshold float64 `json:"soft_threshold"`

	// HardThreshold is the usage ratio reported as hard pressure.
	HardThreshold float64 `json:"hard_threshold"`

	// CriticalThreshold is the usage ratio reported as critical in stats.
	CriticalThreshold float64 `json:"critical_threshold"`

	// PromotionThreshold is the number of full cycles a segment must
	// survive while reachable before promotion to the old generation.
	PromotionThreshold int `json:"promotion_threshold"`

	// DeleteScoreThreshold is the strict secondary score below which an
	// old, long-surviving candidate may be deleted instead of stashed.
	DeleteScoreThreshold float64 `json:"delete_score_threshold"`

	// DeleteSurvivalFloor is the minimum survival_count for delete eligibility.
	DeleteSurvivalFloor int `json:"delete_survival_floor"`

	// RecentRootCount is how many most-recently-touched segments join
	// the root set each cycle.
	RecentRootCount int `json:"recent_root_count"`

	// DecayHalfLifeSeconds is the half-life of the recency decay.
	DecayHalfLifeSeconds int64 `json:"decay_half_life_seconds"`

	// IncrementalBatchSize bounds how many segments a single
	// incremental GC step may touch.
	IncrementalBatchSize int `json:"incremental_batch_size"`

	// ScoreWeights configures the eviction score terms.
	ScoreWeights Weights `json:"score_weights"`

	// StorageRoot overrides the archive directory (default: <base>/archive).
	StorageRoot string `json:"storage_root,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TokenLimit:           100_000,
		SoftThreshold:        0.60,
		HardThreshold:        0.80,
		CriticalThreshold:    0.90,
		PromotionThreshold:   3,
		DeleteScoreThreshold: 0.05,
		DeleteSurvivalFloor:  5,
		RecentRootCount:      20,
		DecayHalfLifeSeconds: 6 * 60 * 60,
		IncrementalBatchSize: 64,
		ScoreWeights: Weights{
			Recency:    1.0,
			Type:       0.5,
			Ref:        0.5,
			Generation: -0.15,
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cairn.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.TokenLimit = pickInt(base.TokenLimit, overlay.TokenLimit)
	result.PromotionThreshold = pickInt(base.PromotionThreshold, overlay.PromotionThreshold)
	result.DeleteSurvivalFloor = pickInt(base.DeleteSurvivalFloor, overlay.DeleteSurvivalFloor)
	result.RecentRootCount = pickInt(base.RecentRootCount, overlay.RecentRootCount)
	result.IncrementalBatchSize = pickInt(base.IncrementalBatchSize, overlay.IncrementalBatchSize)

	result.SoftThreshold = pickFloat(base.SoftThreshold, overlay.SoftThreshold)
	result.HardThreshold = pickFloat(base.HardThreshold, overlay.HardThreshold)
	result.CriticalThreshold = pickFloat(base.CriticalThreshold, overlay.CriticalThreshold)
	result.DeleteScoreThreshold = pickFloat(base.DeleteScoreThreshold, overlay.DeleteScoreThreshold)

	result.DecayHalfLifeSeconds = overlay.DecayHalfLifeSeconds
	if result.DecayHalfLifeSeconds == 0 {
		result.DecayHalfLifeSeconds = base.DecayHalfLifeSeconds
	}

	result.ScoreWeights = overlay.ScoreWeights
	if result.ScoreWeights == (Weights{}) {
		result.ScoreWeights = base.ScoreWeights
	}

	result.StorageRoot = overlay.StorageRoot
	if result.StorageRoot == "" {
		result.StorageRoot = base.StorageRoot
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickFloat(base, overlay float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
