// Package mcp exposes the form-fill pipeline as a Model Context
// Protocol stdio server so agent frontends can drive it without
// shelling out.
package mcp

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/autoformfill/formfill/internal/config"
	"github.com/autoformfill/formfill/internal/configfile"
	"github.com/autoformfill/formfill/internal/pipeline"
	"github.com/autoformfill/formfill/internal/template"
)

// Server represents the MCP server instance.
type Server struct {
	config    *config.Config
	pipe      *pipeline.Pipeline
	matcher   template.Matcher
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance around an existing
// pipeline. The matcher may be nil when no template library is
// configured; the template_match tool then reports the capability as
// absent.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline, matcher template.Matcher) (*Server, error) {
	if pipe == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		pipe:      pipe,
		matcher:   matcher,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	formFillTool := mcp.NewTool(
		"form_fill",
		mcp.WithDescription("Extract data from a scanned form image and produce a filled output document"),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Full path to the input form image"),
		),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Full path to the template file (JSON or YAML)"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Full path for the filled output (PNG, JPEG, or PDF)"),
		),
		mcp.WithString("data",
			mcp.Description("Optional path to a file with data overrides"),
		),
	)
	s.mcpServer.AddTool(formFillTool, s.handleFormFill)

	templateValidateTool := mcp.NewTool(
		"template_validate",
		mcp.WithDescription("Load a template file and check its structural shape"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the template file"),
		),
	)
	s.mcpServer.AddTool(templateValidateTool, s.handleTemplateValidate)

	templateMatchTool := mcp.NewTool(
		"template_match",
		mcp.WithDescription("Match an image against the configured template library"),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Full path to the input form image"),
		),
	)
	s.mcpServer.AddTool(templateMatchTool, s.handleTemplateMatch)
}

// Handler functions
func (s *Server) handleFormFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imagePath, err := request.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	templatePath, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outputPath, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dataPath := request.GetString("data", "")

	result, err := s.pipe.Run(ctx, pipeline.Request{
		ImagePath:    imagePath,
		TemplatePath: templatePath,
		OutputPath:   outputPath,
		DataPath:     dataPath,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFillResult(result)), nil
}

func (s *Server) handleTemplateValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := configfile.Load(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := template.Validate(raw); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tpl := template.Decode(raw)
	text := fmt.Sprintf("Template is valid: %s\n", path)
	text += fmt.Sprintf("Fields: %d\n", len(tpl.Fields))
	for i, f := range tpl.Fields {
		text += fmt.Sprintf("%d. %s %v\n", i+1, f.Name, f.PixelBBox)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleTemplateMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imagePath, err := request.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.matcher == nil {
		return mcp.NewToolResultError("automatic template matching is not configured (no template library)"), nil
	}

	raw, err := s.matcher.Match(ctx, imagePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no template matched: %v", err)), nil
	}
	if err := template.Validate(raw); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("matched template is invalid: %v", err)), nil
	}

	tpl := template.Decode(raw)
	text := fmt.Sprintf("Matched a library template with %d fields\n", len(tpl.Fields))
	for i, f := range tpl.Fields {
		text += fmt.Sprintf("%d. %s %v\n", i+1, f.Name, f.PixelBBox)
	}
	return mcp.NewToolResultText(text), nil
}

// Formatting methods
func (s *Server) formatFillResult(result *pipeline.Result) string {
	text := "Form fill completed successfully\n"
	text += fmt.Sprintf("Run ID: %s\n", result.RunID)
	text += fmt.Sprintf("Input image: %s\n", result.ImagePath)
	text += fmt.Sprintf("Template: %s", result.TemplatePath)
	if result.Matched {
		text += " (matched automatically)"
	}
	text += "\n"
	text += fmt.Sprintf("Fields processed: %d\n", result.FieldCount)
	if result.OverrideCount > 0 {
		text += fmt.Sprintf("Override values: %d\n", result.OverrideCount)
	}
	text += fmt.Sprintf("Output saved: %s\n", result.OutputPath)

	if len(result.Data) > 0 {
		names := make([]string, 0, len(result.Data))
		for name := range result.Data {
			names = append(names, name)
		}
		sort.Strings(names)
		text += "\nValues:\n"
		for _, name := range names {
			text += fmt.Sprintf("  %s: %s\n", name, result.Data[name])
		}
	}

	return text
}

// Run starts the MCP server over stdio. The parent process controls the
// lifecycle.
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting formfill MCP server in stdio mode")
		if s.config.TemplatesDir != "" {
			log.Printf("Template library: %s", s.config.TemplatesDir)
		}
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
