// Package mcpserver exposes the defacing methods as Model Context Protocol tools
// so an agent can deface local volumes over stdio.
package mcpserver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
	"github.com/basakesin/mri-defacing-platform/internal/version"
)

var logger = logging.NewPackageLogger("mcpserver")

const (
	ServerName = "mri-defacing-platform"

	ToolListMethods = "list_methods"
	ToolDefaceFile  = "deface_file"

	// subject tags jobs started through MCP in the job history.
	subject = "mcp"
)

// MethodInfo is one entry of list_methods.
type MethodInfo struct {
	Value       string   `json:"value"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Available   bool     `json:"available"`
	Requires    []string `json:"requires,omitempty"`
}

type ListMethodsInput struct {
	IncludeUnavailable bool `json:"include_unavailable,omitempty" jsonschema:"also list methods whose tools are not installed"`
}

type ListMethodsOutput struct {
	Methods []MethodInfo `json:"methods"`
	Total   int          `json:"total"`
}

type DefaceFileInput struct {
	InputPath  string `json:"input_path" jsonschema:"absolute path of a .nii or .nii.gz volume"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"where to write the result; defaults to defaced_<method>.nii next to the input"`
	Method     string `json:"method,omitempty" jsonschema:"defacing method; defaults to pydeface"`
}

// New returns an MCP server with the defacing tools registered against svc.
func New(svc *pipeline.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListMethods,
		Description: "List the MRI defacing methods this host can run.",
	}, listMethods(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolDefaceFile,
		Description: "Remove facial features from a local NIfTI volume and write the defaced copy to disk.",
	}, defaceFile(svc))

	return server
}

// Serve runs the server on stdin/stdout until ctx is done or the client disconnects.
func Serve(ctx context.Context, svc *pipeline.Service) error {
	logger.KV(xlog.INFO, "status", "serving", "transport", "stdio")
	if err := New(svc).Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "mcp server")
	}
	return nil
}

func listMethods(svc *pipeline.Service) mcp.ToolHandlerFor[ListMethodsInput, ListMethodsOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, in ListMethodsInput) (*mcp.CallToolResult, ListMethodsOutput, error) {
		out := ListMethodsOutput{Methods: []MethodInfo{}}
		for _, d := range svc.Registry().All() {
			ok := d.Available()
			if !ok && !in.IncludeUnavailable {
				continue
			}
			out.Methods = append(out.Methods, MethodInfo{
				Value:       d.ID,
				Label:       d.Label,
				Description: d.Description,
				Available:   ok,
				Requires:    d.Requires,
			})
		}
		out.Total = len(out.Methods)
		return nil, out, nil
	}
}

func defaceFile(svc *pipeline.Service) mcp.ToolHandlerFor[DefaceFileInput, pipeline.FileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in DefaceFileInput) (*mcp.CallToolResult, pipeline.FileResult, error) {
		if in.InputPath == "" {
			return nil, pipeline.FileResult{}, errors.New("input_path is required")
		}
		res, err := svc.RunFile(ctx, in.InputPath, in.OutputPath, in.Method, subject)
		if err != nil {
			return nil, pipeline.FileResult{}, err
		}
		return nil, res, nil
	}
}
