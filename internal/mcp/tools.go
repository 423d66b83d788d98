package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var stringItems = map[string]any{"type": "string"}

var storeToolDef = mcp.NewTool("segment_store",
	mcp.WithDescription("Store or update a context segment in a project's working memory. Returns the segment metadata plus current token usage and whether a GC cycle is due."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithString("segment_id", mcp.Description("Segment id to update; omit to create a new segment with a generated ULID.")),
	mcp.WithString("type", mcp.Required(), mcp.Description("Segment type."), mcp.Enum("message", "code", "log", "note", "decision", "summary")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Segment content.")),
	mcp.WithString("task_id", mcp.Description("Task this segment belongs to.")),
	mcp.WithBoolean("pinned", mcp.Description("Pinned segments are never evicted by GC.")),
	mcp.WithString("file_path", mcp.Description("Source file this segment is linked to.")),
	mcp.WithNumber("line_start", mcp.Description("First line of the linked range.")),
	mcp.WithNumber("line_end", mcp.Description("Last line of the linked range.")),
	mcp.WithArray("tags", mcp.Description("Tags for filtering."), mcp.Items(stringItems)),
	mcp.WithString("topic_id", mcp.Description("Topic group for filtering.")),
	mcp.WithArray("refs", mcp.Description("Ids of segments this one references."), mcp.Items(stringItems)),
)

var getToolDef = mcp.NewTool("segment_get",
	mcp.WithDescription("Fetch one segment by id from the working or stashed tier. Fetching counts as a use and bumps the segment's refcount."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithString("segment_id", mcp.Required(), mcp.Description("Segment id.")),
	mcp.WithBoolean("include_text", mcp.Description("Include the segment text (default true).")),
)

var stashToolDef = mcp.NewTool("segment_stash",
	mcp.WithDescription("Move segments out of the working tier into the searchable stash. Reports per-segment outcomes."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithArray("segment_ids", mcp.Required(), mcp.Description("Segments to stash."), mcp.Items(stringItems)),
)

var searchToolDef = mcp.NewTool("segment_search",
	mcp.WithDescription("Search the stashed tier by keywords and metadata filters. All given criteria must match. Optionally restore hits to the working tier."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithString("query", mcp.Description("Keyword query; markdown markup is ignored.")),
	mcp.WithString("file_path", mcp.Description("Only segments linked to this file.")),
	mcp.WithString("task_id", mcp.Description("Only segments of this task.")),
	mcp.WithString("type", mcp.Description("Only segments of this type."), mcp.Enum("message", "code", "log", "note", "decision", "summary")),
	mcp.WithString("tag", mcp.Description("Only segments carrying this tag.")),
	mcp.WithString("topic_id", mcp.Description("Only segments of this topic.")),
	mcp.WithNumber("limit", mcp.Description("Max hits to return (default 10, max 50).")),
	mcp.WithBoolean("restore", mcp.Description("Move the returned segments back to the working tier.")),
	mcp.WithBoolean("include_text", mcp.Description("Include full text instead of just a snippet.")),
)

var deleteToolDef = mcp.NewTool("segment_delete",
	mcp.WithDescription("Permanently delete segments from any tier. Reports per-segment outcomes."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithArray("segment_ids", mcp.Required(), mcp.Description("Segments to delete."), mcp.Items(stringItems)),
)

var sweepToolDef = mcp.NewTool("segment_sweep",
	mcp.WithDescription("Run one full GC cycle: mark reachable segments from the current focus, then stash or archive the least valuable unreachable ones until the token target is met."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Owning project identifier.")),
	mcp.WithString("task_id", mcp.Description("Current task; its segments become GC roots.")),
	mcp.WithArray("active_files", mcp.Description("Open files; linked segments become GC roots."), mcp.Items(stringItems)),
	mcp.WithArray("extra_roots", mcp.Description("Explicit segment ids to protect this cycle."), mcp.Items(stringItems)),
	mcp.WithNumber("target_tokens", mcp.Description("Tokens to free; 0 means free down to the soft threshold.")),
)

var rebuildToolDef = mcp.NewTool("segment_rebuild",
	mcp.WithDescription("Rebuild a project's search index from its archive shard. Safe to run anytime; the recovery step for consistency errors."),
	mcp.WithString("project_id", mcp.Description("Project to rebuild; omit to rebuild every project.")),
)

var projectsToolDef = mcp.NewTool("segment_projects",
	mcp.WithDescription("List all known project ids."),
)

var statsToolDef = mcp.NewTool("segment_stats",
	mcp.WithDescription("Report tier sizes, token counts, and a type breakdown for one project."),
	mcp.WithString("project_id", mcp.Required(), mcp.Description("Project to report on.")),
)
