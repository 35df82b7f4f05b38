// Package mcp exposes signature normalization as MCP tools so an agent
// can bucket a crash report without touching the corpus on disk.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"wasmtriage/internal/logging"
	"wasmtriage/internal/normalize"
	"wasmtriage/internal/signature"
	"wasmtriage/internal/store"
)

// Server wraps the MCP SDK server with the triage tools registered.
type Server struct {
	MCPServer *sdkmcp.Server
	// Store, when set, backs the lookup_signature tool.
	Store store.Store

	log *slog.Logger
}

// NewServer creates the server. st may be nil, in which case
// lookup_signature is not offered.
func NewServer(version string, st store.Store) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "wasmtriage", Version: version}, nil),
		Store:     st,
		log:       logging.New("mcp"),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "normalize_line",
		Description: "Normalize one '<runtime>:<func>:<>:<output>' line: collapse error wording to a category and alias numeric payloads.",
	}, s.handleNormalizeLine)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "build_signature",
		Description: "Build the deduplication signature of a whole record. Lines containing DIFF are dropped.",
	}, s.handleBuildSignature)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify",
		Description: "Return the error category and matching rule for a raw runtime output payload.",
	}, s.handleClassify)

	if s.Store != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "lookup_signature",
			Description: "Find catalogued buckets whose signature equals the given one.",
		}, s.handleLookupSignature)
	}
}

// --- Tool input/output types ---

type normalizeLineInput struct {
	Line string `json:"line" jsonschema:"raw diagnostic line"`
}

type normalizeLineOutput struct {
	Normalized string `json:"normalized"`
	HasPayload bool   `json:"has_payload"`
	Category   string `json:"category,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

type buildSignatureInput struct {
	Text     string `json:"text" jsonschema:"full record text, newline separated"`
	SourceID string `json:"source_id,omitempty" jsonschema:"record identifier echoed back"`
}

type buildSignatureOutput struct {
	SourceID   string            `json:"source_id,omitempty"`
	Signature  string            `json:"signature"`
	Empty      bool              `json:"empty"`
	Aliases    map[string]string `json:"aliases,omitempty"`
	Categories []string          `json:"categories,omitempty"`
}

type classifyInput struct {
	Output string `json:"output" jsonschema:"runtime output payload, without the prefix"`
}

type classifyOutput struct {
	Category string `json:"category,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Numeric  bool   `json:"numeric"`
	Matched  bool   `json:"matched"`
}

type lookupSignatureInput struct {
	Signature string `json:"signature" jsonschema:"signature body as returned by build_signature"`
}

type lookupBucket struct {
	RunID          int64    `json:"run_id"`
	Dir            string   `json:"dir"`
	Representative string   `json:"representative"`
	Categories     []string `json:"categories,omitempty"`
}

type lookupSignatureOutput struct {
	Known   bool           `json:"known"`
	Buckets []lookupBucket `json:"buckets"`
}

// --- Handlers ---

func (s *Server) handleNormalizeLine(_ context.Context, _ *sdkmcp.CallToolRequest, input normalizeLineInput) (*sdkmcp.CallToolResult, normalizeLineOutput, error) {
	aliases := normalize.NewAliasTable()
	out := normalizeLineOutput{Normalized: normalize.Line(input.Line, aliases)}
	_, payload, ok := normalize.Split(out.Normalized)
	out.HasPayload = ok
	if !ok {
		return nil, out, nil
	}
	if normalize.IsCategory(payload) {
		out.Category = payload
	}
	if aliases.Len() > 0 {
		out.Alias = payload
	}
	return nil, out, nil
}

func (s *Server) handleBuildSignature(_ context.Context, _ *sdkmcp.CallToolRequest, input buildSignatureInput) (*sdkmcp.CallToolResult, buildSignatureOutput, error) {
	sig, ok := signature.Build(signature.Record{
		SourceID: input.SourceID,
		Lines:    signature.SplitLines(input.Text),
	})
	out := buildSignatureOutput{SourceID: input.SourceID, Signature: sig.Body, Empty: !ok, Aliases: sig.Aliases}
	for _, c := range signature.Categories(sig.Body) {
		out.Categories = append(out.Categories, string(c))
	}
	s.log.Debug("signature built", "source_id", input.SourceID, "empty", !ok)
	return nil, out, nil
}

func (s *Server) handleClassify(_ context.Context, _ *sdkmcp.CallToolRequest, input classifyInput) (*sdkmcp.CallToolResult, classifyOutput, error) {
	payload := input.Output
	out := classifyOutput{}
	if c, ok := normalize.Classify(payload); ok {
		out.Category = string(c)
		out.Matched = true
		out.Rule = ruleFor(payload)
		return nil, out, nil
	}
	out.Numeric = normalize.IsNumeric(payload)
	return nil, out, nil
}

// ruleFor names the first rule matching payload, or "" when payload is
// already a category label.
func ruleFor(payload string) string {
	if normalize.IsCategory(payload) {
		return ""
	}
	for _, r := range normalize.Rules() {
		if r.Match(payload) {
			return r.Name
		}
	}
	return ""
}

func (s *Server) handleLookupSignature(_ context.Context, _ *sdkmcp.CallToolRequest, input lookupSignatureInput) (*sdkmcp.CallToolResult, lookupSignatureOutput, error) {
	if input.Signature == "" {
		return nil, lookupSignatureOutput{}, fmt.Errorf("signature is required")
	}
	found, err := s.Store.FindSignature(input.Signature)
	if err != nil {
		return nil, lookupSignatureOutput{}, err
	}
	out := lookupSignatureOutput{Known: len(found) > 0, Buckets: []lookupBucket{}}
	dirs := make(map[int64]string)
	for _, b := range found {
		dir, ok := dirs[b.RunID]
		if !ok {
			if run, err := s.Store.GetRun(b.RunID); err == nil {
				dir = run.Dir
			}
			dirs[b.RunID] = dir
		}
		out.Buckets = append(out.Buckets, lookupBucket{
			RunID:          b.RunID,
			Dir:            dir,
			Representative: b.Representative,
			Categories:     b.Categories,
		})
	}
	return nil, out, nil
}
