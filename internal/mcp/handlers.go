package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cfg *config.Config) *Handlers {
	return &Handlers{store: st, cfg: cfg}
}

// Request types for each tool

// StoreRequest represents the arguments for segment_store.
type StoreRequest struct {
	ProjectID string   `json:"project_id"`
	SegmentID string   `json:"segment_id,omitempty"`
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	TaskID    string   `json:"task_id,omitempty"`
	Pinned    bool     `json:"pinned,omitempty"`
	FilePath  string   `json:"file_path,omitempty"`
	LineStart int      `json:"line_start,omitempty"`
	LineEnd   int      `json:"line_end,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	TopicID   string   `json:"topic_id,omitempty"`
	Refs      []string `json:"refs,omitempty"`
}

// GetRequest represents the arguments for segment_get.
type GetRequest struct {
	ProjectID   string `json:"project_id"`
	SegmentID   string `json:"segment_id"`
	IncludeText *bool  `json:"include_text,omitempty"`
}

// StashRequest represents the arguments for segment_stash.
type StashRequest struct {
	ProjectID  string   `json:"project_id"`
	SegmentIDs []string `json:"segment_ids"`
}

// SearchRequest represents the arguments for segment_search.
type SearchRequest struct {
	ProjectID   string `json:"project_id"`
	Query       string `json:"query,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Type        string `json:"type,omitempty"`
	Tag         string `json:"tag,omitempty"`
	TopicID     string `json:"topic_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Restore     bool   `json:"restore,omitempty"`
	IncludeText bool   `json:"include_text,omitempty"`
}

// DeleteRequest represents the arguments for segment_delete.
type DeleteRequest struct {
	ProjectID  string   `json:"project_id"`
	SegmentIDs []string `json:"segment_ids"`
}

// SweepRequest represents the arguments for segment_sweep.
type SweepRequest struct {
	ProjectID    string   `json:"project_id"`
	TaskID       string   `json:"task_id,omitempty"`
	ActiveFiles  []string `json:"active_files,omitempty"`
	ExtraRoots   []string `json:"extra_roots,omitempty"`
	TargetTokens int      `json:"target_tokens,omitempty"`
}

// RebuildRequest represents the arguments for segment_rebuild.
type RebuildRequest struct {
	ProjectID string `json:"project_id,omitempty"`
}

// StatsRequest represents the arguments for segment_stats.
type StatsRequest struct {
	ProjectID string `json:"project_id"`
}

// Handler implementations

// HandleStore handles the segment_store tool call.
func (h *Handlers) HandleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StoreRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Put(ctx, store.PutInput{
		ProjectID: input.ProjectID,
		SegmentID: input.SegmentID,
		Type:      input.Type,
		Text:      input.Text,
		TaskID:    input.TaskID,
		Pinned:    input.Pinned,
		FilePath:  input.FilePath,
		LineStart: input.LineStart,
		LineEnd:   input.LineEnd,
		Tags:      input.Tags,
		TopicID:   input.TopicID,
		Refs:      input.Refs,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the segment_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Get(ctx, store.GetInput{
		ProjectID:   input.ProjectID,
		SegmentID:   input.SegmentID,
		IncludeText: input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStash handles the segment_stash tool call.
func (h *Handlers) HandleStash(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StashRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Stash(ctx, store.StashInput{
		ProjectID:  input.ProjectID,
		SegmentIDs: input.SegmentIDs,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the segment_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Search(ctx, store.SearchInput{
		ProjectID:   input.ProjectID,
		Query:       input.Query,
		FilePath:    input.FilePath,
		TaskID:      input.TaskID,
		Type:        input.Type,
		Tag:         input.Tag,
		TopicID:     input.TopicID,
		Limit:       input.Limit,
		Restore:     input.Restore,
		IncludeText: input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the segment_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Delete(ctx, store.DeleteInput{
		ProjectID:  input.ProjectID,
		SegmentIDs: input.SegmentIDs,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSweep handles the segment_sweep tool call.
func (h *Handlers) HandleSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SweepRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Sweep(ctx, store.SweepInput{
		ProjectID:    input.ProjectID,
		TaskID:       input.TaskID,
		ActiveFiles:  input.ActiveFiles,
		ExtraRoots:   input.ExtraRoots,
		TargetTokens: input.TargetTokens,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRebuild handles the segment_rebuild tool call.
func (h *Handlers) HandleRebuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RebuildRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	if input.ProjectID == "" {
		result, err := h.store.RebuildAll(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(map[string]any{"projects": result})
	}

	result, err := h.store.Rebuild(ctx, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjects handles the segment_projects tool call.
func (h *Handlers) HandleProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.store.ListProjects(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"projects": result})
}

// HandleStats handles the segment_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	result, err := h.store.Stats(ctx, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cairnErr *errors.CairnError
	if stderrors.As(err, &cairnErr) {
		errorObj := map[string]any{
			"code":    cairnErr.Code,
			"message": err.Error(),
			"status":  cairnErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or wrapped io errors
		if cairnErr.Code != errors.ErrInternal && cairnErr.Details != nil {
			errorObj["details"] = cairnErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
