package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/gorm"

	"github.com/lavafroth/silos/core"
	"github.com/lavafroth/silos/models"
	"github.com/lavafroth/silos/state"
)

// ToolDefinition describes a tool for the client
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// GetToolDefinitions returns all available tool definitions
func GetToolDefinitions() []ToolDefinition {
	languageProp := map[string]any{
		"type":        "string",
		"description": "Language tag (go, c, cpp, js, ts, rs, py)",
	}

	return []ToolDefinition{
		{
			Name:        "generate",
			Description: "Retrieve code snippets matching a natural language prompt",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"language": languageProp,
					"prompt": map[string]any{
						"type":        "string",
						"description": "What the snippet should do",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "Maximum number of snippets to return",
					},
				},
				"required": []string{"language", "prompt"},
			},
		},
		{
			Name:        "refactor",
			Description: "Apply the structural rewrites closest to a natural language prompt",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"language": languageProp,
					"prompt": map[string]any{
						"type":        "string",
						"description": "What the rewrite should achieve",
					},
					"source": map[string]any{
						"type":        "string",
						"description": "Source code to rewrite",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "Maximum number of candidate rewrites to return",
					},
				},
				"required": []string{"language", "prompt", "source"},
			},
		},
		{
			Name:        "dump_expression",
			Description: "Show the parse tree of a snippet as an s-expression",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"language": languageProp,
					"source": map[string]any{
						"type":        "string",
						"description": "Source code to parse",
					},
				},
				"required": []string{"language", "source"},
			},
		},
		{
			Name:        "show_captures",
			Description: "Run a query expression against a snippet and show its captures",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"language": languageProp,
					"source": map[string]any{
						"type":        "string",
						"description": "Source code to query",
					},
					"expression": map[string]any{
						"type":        "string",
						"description": "Query expression to execute",
					},
				},
				"required": []string{"language", "source", "expression"},
			},
		},
	}
}

func (s *StdioServer) registerBuiltinTools() {
	s.RegisterTool("generate", s.handleGenerate)
	s.RegisterTool("refactor", s.handleRefactor)
	s.RegisterTool("dump_expression", s.handleDumpExpression)
	s.RegisterTool("show_captures", s.handleShowCaptures)
}

// RewriteCandidate is one refactor result: the full rewritten source plus a
// unified diff against the input.
type RewriteCandidate struct {
	Rewritten string `json:"rewritten"`
	Diff      string `json:"diff"`
}

func (s *StdioServer) handleGenerate(raw json.RawMessage) (any, error) {
	var args struct {
		Language string `json:"language"`
		Prompt   string `json:"prompt"`
		TopK     int    `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewMCPError(InvalidParams, "Invalid arguments structure")
	}
	topK := args.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	started := time.Now()
	snippets, err := s.state.Generate(ctx, args.Language, args.Prompt, topK)
	s.recordRequest("generate", args.Language, args.Prompt, topK, len(snippets), snippets, err, started)
	if err != nil {
		return nil, domainError(err)
	}

	return map[string]any{"snippets": snippets}, nil
}

func (s *StdioServer) handleRefactor(raw json.RawMessage) (any, error) {
	var args struct {
		Language string `json:"language"`
		Prompt   string `json:"prompt"`
		Source   string `json:"source"`
		TopK     int    `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewMCPError(InvalidParams, "Invalid arguments structure")
	}
	topK := args.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	ctx, cancel := s.requestContext()
	defer cancel()

	started := time.Now()
	rewrites, err := s.state.Refactor(ctx, args.Language, args.Prompt, args.Source, topK)
	s.recordRequest("refactor", args.Language, args.Prompt, topK, len(rewrites), rewrites, err, started)
	if err != nil {
		return nil, domainError(err)
	}

	candidates := make([]RewriteCandidate, 0, len(rewrites))
	for _, rewritten := range rewrites {
		diff, diffErr := unifiedDiff(args.Source, rewritten)
		if diffErr != nil {
			s.debugLog("Failed to render diff: %v", diffErr)
		}
		candidates = append(candidates, RewriteCandidate{
			Rewritten: rewritten,
			Diff:      diff,
		})
	}

	return map[string]any{"candidates": candidates}, nil
}

func (s *StdioServer) handleDumpExpression(raw json.RawMessage) (any, error) {
	var args struct {
		Language string `json:"language"`
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewMCPError(InvalidParams, "Invalid arguments structure")
	}

	tree, err := state.DumpExpression([]byte(args.Source), args.Language)
	if err != nil {
		return nil, domainError(err)
	}
	return map[string]any{"tree": tree}, nil
}

func (s *StdioServer) handleShowCaptures(raw json.RawMessage) (any, error) {
	var args struct {
		Language   string `json:"language"`
		Source     string `json:"source"`
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, NewMCPError(InvalidParams, "Invalid arguments structure")
	}

	result, err := state.ShowCaptures([]byte(args.Source), args.Language, args.Expression)
	if err != nil {
		return nil, domainError(err)
	}
	return map[string]any{
		"start":    result.Start,
		"end":      result.End,
		"captures": result.Captures,
	}, nil
}

// requestContext bounds one tool call.
func (s *StdioServer) requestContext() (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.config.RequestTimeout)
}

// unifiedDiff renders a unified diff from the original source to one
// rewrite candidate.
func unifiedDiff(before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	})
}

// recordRequest persists one served request. History is best-effort: a
// write failure is logged, never surfaced to the client.
func (s *StdioServer) recordRequest(kind, language, prompt string, topK, resultCount int, results []string, reqErr error, started time.Time) {
	if s.db == nil {
		return
	}

	record := &models.Request{
		ID:          models.NewID(),
		Kind:        kind,
		Language:    language,
		Prompt:      prompt,
		TopK:        topK,
		ResultCount: resultCount,
		DurationMS:  time.Since(started).Milliseconds(),
	}
	if reqErr != nil {
		record.ErrorCode = string(core.CodeFor(reqErr))
	}
	if payload, err := json.Marshal(results); err == nil {
		record.Results = payload
	}

	if err := s.db.Create(record).Error; err != nil {
		s.debugLog("Failed to record request: %v", err)
		return
	}

	if s.session != nil {
		column := "generate_count"
		if kind == "refactor" {
			column = "refactor_count"
		}
		if err := s.db.Model(s.session).Update(column, gorm.Expr(column+" + 1")).Error; err != nil {
			s.debugLog("Failed to bump session counter: %v", err)
		}
	}
}

// recordClientInfo stores the handshake client identity on the session.
func (s *StdioServer) recordClientInfo(name, version string) {
	if s.db == nil || s.session == nil {
		return
	}
	info, err := json.Marshal(map[string]string{"name": name, "version": version})
	if err != nil {
		return
	}
	if err := s.db.Model(s.session).Update("client_info", info).Error; err != nil {
		s.debugLog("Failed to record client info: %v", err)
	}
}
