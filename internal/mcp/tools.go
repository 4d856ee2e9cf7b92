package mcp

import "github.com/mark3labs/mcp-go/mcp"

var entityItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"start": map[string]any{"type": "integer", "description": "Start offset in code points"},
		"end":   map[string]any{"type": "integer", "description": "End offset in code points (exclusive)"},
		"label": map[string]any{"type": "string", "enum": []string{"DEPARTURE", "ARRIVAL"}},
	},
	"required": []string{"start", "end", "label"},
}

var sentenceFetchToolDef = mcp.NewTool("sentence_fetch",
	mcp.WithDescription("Fetch a stored sentence with its entities, validity and treated flag."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Sentence id")),
)

var sentenceCreateToolDef = mcp.NewTool("sentence_create",
	mcp.WithDescription("Store a new sentence. Text is immutable once stored. Entities are optional; validity is computed."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Sentence text (NFC, trimmed when entities are given)")),
	mcp.WithArray("entities", mcp.Description("Initial labeled spans"), mcp.Items(entityItems)),
	mcp.WithBoolean("is_treated", mcp.Description("Treated flag; defaults to the computed validity")),
)

var sentenceSetValidToolDef = mcp.NewTool("sentence_set_valid",
	mcp.WithDescription("Override a sentence's validity. The override holds until its entities are saved again or revalidation runs."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Sentence id")),
	mcp.WithBoolean("valid", mcp.Required(), mcp.Description("New validity")),
)

var sentenceTreatAllToolDef = mcp.NewTool("sentence_treat_all",
	mcp.WithDescription("Mark every untreated sentence as treated. Returns the number changed."),
)

var sentenceStatsToolDef = mcp.NewTool("sentence_stats",
	mcp.WithDescription("Count total, valid and treated sentences, with completion and validation rates in percent."),
)

var sentenceExportToolDef = mcp.NewTool("sentence_export",
	mcp.WithDescription("Export sentences as a JSONL training file: a header line then one [start,end,label] record per sentence."),
	mcp.WithString("path", mcp.Description("Output path; defaults to ~/.tagline/exports/training-<timestamp>.jsonl")),
	mcp.WithBoolean("treated_only", mcp.Description("Only export treated sentences")),
	mcp.WithBoolean("valid_only", mcp.Description("Only export valid sentences")),
)

var sessionOpenToolDef = mcp.NewTool("session_open",
	mcp.WithDescription("Open an editing session for a sentence. Returns a session_id and the session view (tokens, entities, state)."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Sentence id")),
)

var sessionViewToolDef = mcp.NewTool("session_view",
	mcp.WithDescription("Show the current view of an editing session."),
	mcp.WithString("session_id", mcp.Required()),
)

var sessionSelectToolDef = mcp.NewTool("session_select",
	mcp.WithDescription("Select a word token by its offsets. The view's selection shows the token's current label."),
	mcp.WithString("session_id", mcp.Required()),
	mcp.WithNumber("start", mcp.Required(), mcp.Description("Token start offset")),
	mcp.WithNumber("end", mcp.Required(), mcp.Description("Token end offset")),
)

var sessionLabelToolDef = mcp.NewTool("session_label",
	mcp.WithDescription("Label a word token, or clear it with NONE. Without start/end the pending selection is labeled."),
	mcp.WithString("session_id", mcp.Required()),
	mcp.WithString("label", mcp.Required(), mcp.Enum("DEPARTURE", "ARRIVAL", "NONE")),
	mcp.WithNumber("start", mcp.Description("Token start offset")),
	mcp.WithNumber("end", mcp.Description("Token end offset")),
)

var sessionTreatToolDef = mcp.NewTool("session_treat",
	mcp.WithDescription("Set the session's treated flag. Takes effect on commit."),
	mcp.WithString("session_id", mcp.Required()),
	mcp.WithBoolean("treated", mcp.Required()),
)

var sessionCommitToolDef = mcp.NewTool("session_commit",
	mcp.WithDescription("Save the session's entities and treated flag, then adopt the store's canonical copy."),
	mcp.WithString("session_id", mcp.Required()),
)

var sessionCloseToolDef = mcp.NewTool("session_close",
	mcp.WithDescription("Close an editing session. Unsaved edits are discarded."),
	mcp.WithString("session_id", mcp.Required()),
)
