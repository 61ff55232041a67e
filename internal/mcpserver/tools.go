package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/echovault/echovault/internal/client"
)

const maxToolLimit = 50

// JournalTools exposes the journal service as MCP tools.
type JournalTools struct {
	client *client.Client
}

// NewJournalTools returns tools backed by c.
func NewJournalTools(c *client.Client) *JournalTools {
	return &JournalTools{client: c}
}

// RegisterTools registers every journal tool on s.
func (jt *JournalTools) RegisterTools(s *server.MCPServer) error {
	s.AddTool(mcp.NewTool("submit_entry",
		mcp.WithDescription("Write a journal entry. The reply may ask for a safety check-in (gate-blocked) or a date confirmation before the entry is saved; answer those with resolve_safety_check or resolve_entry_date."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Entry text")),
		mcp.WithString("reply_context", mcp.Description("Prompt this entry answers, quoted above the text")),
		mcp.WithString("category", mcp.Description("personal (default) or work"), mcp.Enum("personal", "work")),
	), jt.handleSubmit)

	s.AddTool(mcp.NewTool("resolve_safety_check",
		mcp.WithDescription("Answer the safety check-in of a gate-blocked submission. okay and support save the entry; crisis discards it."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("pending_id", mcp.Required(), mcp.Description("pendingId from submit_entry")),
		mcp.WithString("resolution", mcp.Required(), mcp.Enum("okay", "support", "crisis")),
	), jt.handleResolveGate)

	s.AddTool(mcp.NewTool("resolve_entry_date",
		mcp.WithDescription("Confirm or reject the date detected in a submission."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("pending_id", mcp.Required(), mcp.Description("pendingId from submit_entry")),
		mcp.WithString("answer", mcp.Required(), mcp.Enum("use-detected", "use-today")),
	), jt.handleResolveTemporal)

	s.AddTool(mcp.NewTool("dismiss_prompt",
		mcp.WithDescription("Close a pending prompt. A safety check-in is discarded; a date prompt keeps today's date."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("pending_id", mcp.Required(), mcp.Description("pendingId from submit_entry")),
	), jt.handleDismiss)

	s.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List journal entries, newest first"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithNumber("limit", mcp.Description("Max rows (1-50), default 20")),
		mcp.WithString("before", mcp.Description("Return entries created before this RFC3339 timestamp")),
		mcp.WithString("after", mcp.Description("Return entries created after this RFC3339 timestamp")),
	), jt.handleList)

	s.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Get a single journal entry"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("entry_id", mcp.Required(), mcp.Description("The UUID of the entry")),
	), jt.handleGet)

	s.AddTool(mcp.NewTool("ask_journal",
		mcp.WithDescription("Answer a question from the most relevant past entries. The reply lists the source entry ids."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in natural language")),
	), jt.handleAsk)

	s.AddTool(mcp.NewTool("maintenance",
		mcp.WithDescription("Report retrofit/backfill progress, or start a pass with run=true"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Journal owner")),
		mcp.WithBoolean("run", mcp.Description("Start maintenance now")),
	), jt.handleMaintenance)

	return nil
}

// toolResult turns an SDK reply into tool output. Service errors are reported to the model
// as tool errors, never as protocol errors.
func toolResult(op string, raw json.RawMessage, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed (%d): %s", op, apiErr.Status, apiErr.Body)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return v
}

func (jt *JournalTools) handleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Debug().Str("user_id", userID).Int("text_len", len(text)).Msg("submit_entry")
	raw, err := jt.client.Submit(ctx, userID, client.SubmitRequest{
		Text:         text,
		ReplyContext: stringArg(req, "reply_context"),
		Category:     stringArg(req, "category"),
	})
	return toolResult("submit", raw, err)
}

func (jt *JournalTools) handleResolveGate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	pendingID, _ := req.RequireString("pending_id")
	resolution, _ := req.RequireString("resolution")
	raw, err := jt.client.ResolveGate(ctx, userID, pendingID, resolution)
	return toolResult("resolve safety check", raw, err)
}

func (jt *JournalTools) handleResolveTemporal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	pendingID, _ := req.RequireString("pending_id")
	answer, _ := req.RequireString("answer")
	raw, err := jt.client.ResolveTemporal(ctx, userID, pendingID, answer)
	return toolResult("resolve entry date", raw, err)
}

func (jt *JournalTools) handleDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	pendingID, _ := req.RequireString("pending_id")
	raw, err := jt.client.Dismiss(ctx, userID, pendingID)
	return toolResult("dismiss", raw, err)
}

func (jt *JournalTools) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	opts := client.ListOptions{Limit: 20, Before: stringArg(req, "before"), After: stringArg(req, "after")}
	if v, ok := req.GetArguments()["limit"].(float64); ok && v >= 1 {
		opts.Limit = int(v)
		if opts.Limit > maxToolLimit {
			opts.Limit = maxToolLimit
		}
	}
	raw, err := jt.client.List(ctx, userID, opts)
	return toolResult("list entries", raw, err)
}

func (jt *JournalTools) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	entryID, _ := req.RequireString("entry_id")
	raw, err := jt.client.Get(ctx, userID, entryID)
	return toolResult("get entry", raw, err)
}

func (jt *JournalTools) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	question, _ := req.RequireString("question")
	raw, err := jt.client.Ask(ctx, userID, question)
	return toolResult("ask", raw, err)
}

func (jt *JournalTools) handleMaintenance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := req.RequireString("user_id")
	if run, _ := req.GetArguments()["run"].(bool); run {
		raw, err := jt.client.RunMaintenance(ctx, userID)
		return toolResult("run maintenance", raw, err)
	}
	raw, err := jt.client.Maintenance(ctx, userID)
	return toolResult("maintenance status", raw, err)
}
