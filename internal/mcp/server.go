package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"sentence", "session"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"sentence_fetch": {
		def:     sentenceFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceFetch },
	},
	"sentence_create": {
		def:     sentenceCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceCreate },
	},
	"sentence_set_valid": {
		def:     sentenceSetValidToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceSetValid },
	},
	"sentence_treat_all": {
		def:     sentenceTreatAllToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceTreatAll },
	},
	"sentence_stats": {
		def:     sentenceStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceStats },
	},
	"sentence_export": {
		def:     sentenceExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSentenceExport },
	},
	"session_open": {
		def:     sessionOpenToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionOpen },
	},
	"session_view": {
		def:     sessionViewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionView },
	},
	"session_select": {
		def:     sessionSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionSelect },
	},
	"session_label": {
		def:     sessionLabelToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionLabel },
	},
	"session_treat": {
		def:     sessionTreatToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionTreat },
	},
	"session_commit": {
		def:     sessionCommitToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCommit },
	},
	"session_close": {
		def:     sessionCloseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionClose },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "session_open" → "session").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Tagline tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tagline",
		version,
		server.WithToolCapabilities(true),
	)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(h.cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range h.cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport. Open sessions are
// closed when the transport ends.
func Run(db *sql.DB, cfg *config.Config, gw annotate.Gateway, version string) error {
	h := NewHandlers(db, cfg, gw)
	defer h.sessions.CloseAll()
	return server.ServeStdio(NewServer(h, version))
}
