package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/store"
)

// testSetup creates a temporary store and config for testing.
func testSetup(t *testing.T) (*store.Store, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	st, err := store.Open(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// TestHandleStore tests the segment_store handler.
func TestHandleStore(t *testing.T) {
	st, cfg := testSetup(t)
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "store valid segment",
			args: map[string]any{
				"project_id": "proj",
				"type":       "note",
				"text":       "remember the shard layout",
			},
			wantError: false,
		},
		{
			name: "store with explicit id and metadata",
			args: map[string]any{
				"project_id": "proj",
				"segment_id": "seg-1",
				"type":       "code",
				"text":       "func main() {}",
				"file_path":  "cmd/cairn/main.go",
				"tags":       []any{"entrypoint"},
			},
			wantError: false,
		},
		{
			name: "store without text",
			args: map[string]any{
				"project_id": "proj",
				"type":       "note",
			},
			wantError: true,
			errorCode: "VALIDATION",
		},
		{
			name: "store with unknown type",
			args: map[string]any{
				"project_id": "proj",
				"type":       "haiku",
				"text":       "five seven five",
			},
			wantError: true,
			errorCode: "VALIDATION",
		},
		{
			name: "store without project",
			args: map[string]any{
				"type": "note",
				"text": "floating",
			},
			wantError: true,
			errorCode: "VALIDATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleStore(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

// TestHandleGet tests the segment_get handler.
func TestHandleGet(t *testing.T) {
	st, cfg := testSetup(t)
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	storeReq := makeRequest(map[string]any{
		"project_id": "proj",
		"segment_id": "seg-1",
		"type":       "note",
		"text":       "the planning notes",
	})
	if result, _ := h.HandleStore(ctx, storeReq); result.IsError {
		t.Fatalf("setup store failed: %v", extractErrorMessage(result))
	}

	t.Run("get existing includes text by default", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{
			"project_id": "proj",
			"segment_id": "seg-1",
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if output["text"] != "the planning notes" {
			t.Errorf("text = %v, want full text", output["text"])
		}
	})

	t.Run("include_text false omits text", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{
			"project_id":   "proj",
			"segment_id":   "seg-1",
			"include_text": false,
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if text, ok := output["text"]; ok && text != "" {
			t.Errorf("include_text:false should omit text, got %v", text)
		}
	})

	t.Run("get missing segment", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{
			"project_id": "proj",
			"segment_id": "nope",
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected error result")
		}
		assertErrorCode(t, result, "NOT_FOUND")
	})

	t.Run("get from unknown project", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{
			"project_id": "ghost",
			"segment_id": "seg-1",
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		assertErrorCode(t, result, "NOT_FOUND")
	})
}

// TestHandleStashAndSearch exercises the stash/search round trip.
func TestHandleStashAndSearch(t *testing.T) {
	st, cfg := testSetup(t)
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	for i, text := range []string{
		"the migration plan for the billing service",
		"unrelated scratch output",
	} {
		req := makeRequest(map[string]any{
			"project_id": "proj",
			"segment_id": fmt.Sprintf("seg-%d", i),
			"type":       "note",
			"text":       text,
		})
		if result, _ := h.HandleStore(ctx, req); result.IsError {
			t.Fatalf("setup store failed: %v", extractErrorMessage(result))
		}
	}

	stashResult, err := h.HandleStash(ctx, makeRequest(map[string]any{
		"project_id":  "proj",
		"segment_ids": []any{"seg-0", "seg-1", "missing"},
	}))
	if err != nil {
		t.Fatalf("stash handler returned error: %v", err)
	}
	stashOutput := parseOutput(t, stashResult)
	if stashed := stashOutput["stashed"].([]any); len(stashed) != 2 {
		t.Fatalf("stashed = %v, want 2 entries", stashed)
	}
	if failed := stashOutput["failed"].([]any); len(failed) != 1 {
		t.Fatalf("failed = %v, want 1 entry", failed)
	}

	searchResult, err := h.HandleSearch(ctx, makeRequest(map[string]any{
		"project_id": "proj",
		"query":      "migration billing",
	}))
	if err != nil {
		t.Fatalf("search handler returned error: %v", err)
	}
	searchOutput := parseOutput(t, searchResult)
	if total := searchOutput["total"].(float64); total != 1 {
		t.Fatalf("total = %v, want 1", total)
	}
	items := searchOutput["items"].([]any)
	hit := items[0].(map[string]any)["segment"].(map[string]any)
	if hit["id"] != "seg-0" {
		t.Errorf("hit id = %v, want seg-0", hit["id"])
	}

	t.Run("search without criteria is invalid", func(t *testing.T) {
		result, err := h.HandleSearch(ctx, makeRequest(map[string]any{
			"project_id": "proj",
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		assertErrorCode(t, result, "VALIDATION")
	})
}

// TestHandleSweep tests the segment_sweep handler.
func TestHandleSweep(t *testing.T) {
	st, cfg := testSetup(t)
	cfg.RecentRootCount = 1
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	for _, args := range []map[string]any{
		{"project_id": "proj", "segment_id": "pin", "type": "decision", "text": "keep this", "pinned": true},
		{"project_id": "proj", "segment_id": "loose", "type": "log", "text": "stale noise"},
		{"project_id": "proj", "segment_id": "recent", "type": "note", "text": "latest work"},
	} {
		if result, _ := h.HandleStore(ctx, makeRequest(args)); result.IsError {
			t.Fatalf("setup store failed: %v", extractErrorMessage(result))
		}
	}

	result, err := h.HandleSweep(ctx, makeRequest(map[string]any{
		"project_id":    "proj",
		"target_tokens": 1000,
	}))
	if err != nil {
		t.Fatalf("sweep handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	stashed, _ := output["stashed"].([]any)
	if len(stashed) != 1 || stashed[0] != "loose" {
		t.Errorf("stashed = %v, want [loose]", stashed)
	}
	plan := output["plan"].(map[string]any)
	if plan["partial"] != true {
		t.Error("expected a partial plan for an unreachable target")
	}
}

// TestHandleRebuild tests the segment_rebuild handler, single and all.
func TestHandleRebuild(t *testing.T) {
	st, cfg := testSetup(t)
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	for _, proj := range []string{"alpha", "beta"} {
		req := makeRequest(map[string]any{
			"project_id": proj,
			"segment_id": "s",
			"type":       "note",
			"text":       "indexed content",
		})
		if result, _ := h.HandleStore(ctx, req); result.IsError {
			t.Fatalf("setup store failed: %v", extractErrorMessage(result))
		}
		stashReq := makeRequest(map[string]any{
			"project_id":  proj,
			"segment_ids": []any{"s"},
		})
		if result, _ := h.HandleStash(ctx, stashReq); result.IsError {
			t.Fatalf("setup stash failed: %v", extractErrorMessage(result))
		}
	}

	t.Run("single project", func(t *testing.T) {
		result, err := h.HandleRebuild(ctx, makeRequest(map[string]any{"project_id": "alpha"}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if output["complete"] != true {
			t.Errorf("complete = %v, want true", output["complete"])
		}
		if output["indexed"].(float64) != 1 {
			t.Errorf("indexed = %v, want 1", output["indexed"])
		}
	})

	t.Run("all projects", func(t *testing.T) {
		result, err := h.HandleRebuild(ctx, makeRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		projects := output["projects"].([]any)
		if len(projects) != 2 {
			t.Errorf("rebuilt %d projects, want 2", len(projects))
		}
	})
}

// TestHandleProjectsAndStats tests the listing and stats handlers.
func TestHandleProjectsAndStats(t *testing.T) {
	st, cfg := testSetup(t)
	h := NewHandlers(st, cfg)
	ctx := context.Background()

	req := makeRequest(map[string]any{
		"project_id": "proj",
		"type":       "note",
		"text":       "something",
	})
	if result, _ := h.HandleStore(ctx, req); result.IsError {
		t.Fatalf("setup store failed: %v", extractErrorMessage(result))
	}

	projResult, err := h.HandleProjects(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("projects handler returned error: %v", err)
	}
	projOutput := parseOutput(t, projResult)
	projects := projOutput["projects"].([]any)
	if len(projects) != 1 || projects[0] != "proj" {
		t.Errorf("projects = %v, want [proj]", projects)
	}

	statsResult, err := h.HandleStats(ctx, makeRequest(map[string]any{"project_id": "proj"}))
	if err != nil {
		t.Fatalf("stats handler returned error: %v", err)
	}
	statsOutput := parseOutput(t, statsResult)
	if statsOutput["working"].(float64) != 1 {
		t.Errorf("working = %v, want 1", statsOutput["working"])
	}
	usage := statsOutput["usage"].(map[string]any)
	if usage["level"] != "ok" {
		t.Errorf("usage level = %v, want ok", usage["level"])
	}
}

func TestServerRegistration(t *testing.T) {
	st, cfg := testSetup(t)

	s := NewServer(st, cfg, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"segment_store",
		"segment_get",
		"segment_stash",
		"segment_search",
		"segment_delete",
		"segment_sweep",
		"segment_rebuild",
		"segment_projects",
		"segment_stats",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	st, cfg := testSetup(t)

	cfg.DisabledTools = []string{"segment_delete", "segment_sweep"}
	s := NewServer(st, cfg, "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	for _, name := range []string{"segment_store", "segment_get", "segment_search"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"segment_sweep", "segment_delete"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"segment_sweep", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("open /tmp/secret.shard.zst: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesCode(t *testing.T) {
	originalErr := errors.NewSegmentNotFound("proj", "seg-9")
	wrappedErr := fmt.Errorf("items[2]: %w", originalErr)

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
}

func TestErrorResult_ConsistencyNamesRebuild(t *testing.T) {
	r := errorResult(errors.NewConsistency("proj", "index out of step with shard"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	details, ok := errObj["details"].(map[string]any)
	if !ok {
		t.Fatal("expected details on consistency error")
	}
	if details["recovery"] != "rebuild" {
		t.Errorf("recovery = %v, want rebuild", details["recovery"])
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success")
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
