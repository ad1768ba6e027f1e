// Package mcp exposes the harness to AI agents as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/hpyharness/pkg/adapters/memory"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// Harness is the part of the harness the MCP server drives.
type Harness interface {
	Expand(src, name string) (string, error)
	MakeModule(ctx context.Context, main, name string, extra ...string) (*domain.Module, error)
}

// ExpandResponse is the structured result of expand_template.
type ExpandResponse struct {
	Name   string `json:"name" jsonschema_description:"Module name the template was expanded for"`
	Source string `json:"source" jsonschema_description:"Complete C source"`
}

// BuildResponse is the structured result of build_module.
type BuildResponse struct {
	Name        string `json:"name" jsonschema_description:"Loaded module name"`
	Origin      string `json:"origin" jsonschema_description:"File the host imported"`
	Binary      string `json:"binary,omitempty" jsonschema_description:"Native binary behind the origin"`
	SHA256      string `json:"sha256,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty" jsonschema_description:"Compiler output when the build failed"`
}

// DirectivesURI names the directive reference resource.
const DirectivesURI = "hpyharness://directives"

const directivesDoc = `# Template directives

Each directive occupies its own line.

- @EXPORT(sym): add &sym to the module's method table.
- @EXPORT_TYPE("Name", spec): create a type from spec at init and bind it as Name.
- @EXPORT_LEGACY(table): use table as the legacy methods table (default NULL).
- @EXTRA_INIT_FUNC(fn): call fn(ctx, module) during init.
- @INIT: emit the tables and the module init function. No directive may change the tables afterwards.
`

// Server wraps a Harness as an MCP server.
type Server struct {
	harness   Harness
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server.
func NewServer(h Harness, version string) *Server {
	s := &Server{
		harness:   h,
		mcpServer: server.NewMCPServer("hpyharness-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for SSE transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	expandTool := mcp.NewTool("expand_template",
		mcp.WithDescription("Expand the directives of a C extension template into complete C source."),
		mcp.WithString("template", mcp.Required(), mcp.Description("Template text")),
		mcp.WithString("name", mcp.Description("Module name (default: mytest)")),
		mcp.WithOutputSchema[ExpandResponse](),
	)
	s.mcpServer.AddTool(expandTool, mcp.NewStructuredToolHandler(s.handleExpand))

	buildTool := mcp.NewTool("build_module",
		mcp.WithDescription("Compile a template with the configured toolchain and check that the module loads."),
		mcp.WithString("template", mcp.Required(), mcp.Description("Template text")),
		mcp.WithString("name", mcp.Description("Module name (default: mytest)")),
		mcp.WithOutputSchema[BuildResponse](),
	)
	s.mcpServer.AddTool(buildTool, mcp.NewStructuredToolHandler(s.handleBuild))
}

func (s *Server) handleExpand(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ExpandResponse, error) {
	src, name := templateArgs(args)
	out, err := s.harness.Expand(src, name)
	if err != nil {
		return ExpandResponse{}, fmt.Errorf("expand failed: %w", err)
	}
	return ExpandResponse{Name: name, Source: out}, nil
}

func (s *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (BuildResponse, error) {
	src, name := templateArgs(args)
	mod, err := s.harness.MakeModule(ctx, src, name)
	if err != nil {
		var be *domain.BuildError
		if errors.As(err, &be) {
			return BuildResponse{Name: name, Diagnostics: be.Diagnostics}, fmt.Errorf("build failed: %w", err)
		}
		return BuildResponse{}, fmt.Errorf("build failed: %w", err)
	}

	resp := BuildResponse{Name: mod.Name, Origin: mod.Spec.Origin}
	if a, ok := mod.Handle.(memory.Artifact); ok {
		resp.Binary, resp.SHA256 = a.Path, a.SHA256
	}
	return resp, nil
}

func templateArgs(args map[string]interface{}) (string, string) {
	src, _ := args["template"].(string)
	name, _ := args["name"].(string)
	if name == "" {
		name = "mytest"
	}
	return src, name
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(DirectivesURI, "Template directive reference",
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      DirectivesURI,
				MIMEType: "text/markdown",
				Text:     directivesDoc,
			},
		}, nil
	})
}
