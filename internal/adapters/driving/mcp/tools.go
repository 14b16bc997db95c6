package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// defaultSearchLimit is used when the search tool gets no limit.
const defaultSearchLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"what to look for in the vault"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	MediaType string `json:"media_type,omitempty" jsonschema:"only return records of this type: text, voice, image, link or document"`
	Start     string `json:"start,omitempty" jsonschema:"earliest record time, RFC 3339 or YYYY-MM-DD"`
	End       string `json:"end,omitempty" jsonschema:"latest record time, RFC 3339 or YYYY-MM-DD"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []RecordOutput `json:"results"`
	Count   int            `json:"count"`
}

// RecordOutput is a record as returned to the assistant.
type RecordOutput struct {
	ID        int64    `json:"id"`
	MediaType string   `json:"media_type"`
	Content   string   `json:"content"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Time      string   `json:"time"`
	ParentID  *int64   `json:"parent_id,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

// ContextInput is the input schema for the context tool.
type ContextInput struct {
	DocumentID int64  `json:"document_id" jsonschema:"id of the parent document to search inside"`
	Query      string `json:"query" jsonschema:"what to look for in the document"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of passages to return (default 3)"`
}

// ContextOutput is the output schema for the context tool.
type ContextOutput struct {
	Passages []PassageOutput `json:"passages"`
}

// PassageOutput is one evidence passage.
type PassageOutput struct {
	RecordID int64   `json:"record_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Query      string `json:"query" jsonschema:"the question to answer from the vault"`
	DocumentID *int64 `json:"document_id,omitempty" jsonschema:"restrict the answer to one document"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string  `json:"answer"`
	Verified   bool    `json:"verified"`
	Reason     string  `json:"reason"`
	Correction *string `json:"correction,omitempty"`
}

// registerTools registers the tools whose ports are available.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find notes, images, links and documents in the vault by meaning",
	}, s.handleSearch)

	if s.ports.Context != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "context",
			Description: "Retrieve the passages of one document that best match a query",
		}, s.handleContext)
	}

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the vault and fact-check the answer against the sources",
		}, s.handleAsk)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{Limit: input.Limit}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if input.MediaType != "" {
		mt, err := domain.ParseMediaType(input.MediaType)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		opts.MediaType = mt
	}
	tr, err := domain.ParseTimeRange(input.Start, input.End)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	opts.TimeRange = tr

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]RecordOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		out := toRecordOutput(&results[i].Record)
		if results[i].Ranked {
			d := results[i].Distance
			out.Distance = &d
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

func (s *Server) handleContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContextInput,
) (*mcp.CallToolResult, ContextOutput, error) {
	snippets, err := s.ports.Context.GetContext(ctx, input.DocumentID, input.Query, input.TopK)
	if err != nil {
		return nil, ContextOutput{}, err
	}

	output := ContextOutput{Passages: make([]PassageOutput, len(snippets))}
	for i, sn := range snippets {
		output.Passages[i] = PassageOutput{RecordID: sn.SourceRecordID, Text: sn.Text, Score: sn.Score}
	}
	return nil, output, nil
}

// handleAsk drains the chat stream into one reply. MCP tool results are
// not streamed.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	events, err := s.ports.Chat.Ask(ctx, domain.ChatRequest{Query: input.Query, DocumentID: input.DocumentID})
	if err != nil {
		return nil, AskOutput{}, err
	}

	var answer strings.Builder
	var output AskOutput
	var verdict *domain.Verdict
	for ev := range events {
		switch ev.Type {
		case domain.ChatEventToken:
			answer.WriteString(ev.Token)
		case domain.ChatEventNoInformation:
			answer.WriteString(ev.Message)
		case domain.ChatEventVerification:
			verdict = ev.Verdict
		}
	}
	if verdict == nil {
		if err := ctx.Err(); err != nil {
			return nil, AskOutput{}, err
		}
		return nil, AskOutput{}, errors.New("chat stream ended without a verdict")
	}

	output.Answer = answer.String()
	output.Verified = verdict.Valid
	output.Reason = verdict.Reason
	output.Correction = verdict.Correction
	return nil, output, nil
}

func toRecordOutput(r *domain.Record) RecordOutput {
	out := RecordOutput{
		ID:        r.ID,
		MediaType: r.MediaType.String(),
		Content:   r.Content,
		Tags:      r.Tags,
		Time:      r.EffectiveTime().Format(time.RFC3339),
		ParentID:  r.ParentID,
	}
	if r.Summary != nil {
		out.Summary = *r.Summary
	}
	return out
}
