// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the admissions console to LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/models"
)

const lifecycleURI = "chancery://lifecycle"

// Server wraps the MCP server with admissions tools.
type Server struct {
	mcp *server.MCPServer
	svc *admissions.Service
}

// New creates a new MCP server with all admissions tools registered.
func New(svc *admissions.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Chancery",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_applications",
		mcp.WithDescription("List applications newest first, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Optional status filter: New, Reviewed, Approved or Declined")),
	), s.listApplications)

	s.mcp.AddTool(mcp.NewTool("get_application",
		mcp.WithDescription("Get one application including internal notes and communique history."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id")),
	), s.getApplication)

	s.mcp.AddTool(mcp.NewTool("lookup_applicant",
		mcp.WithDescription("Find the newest application filed under an email address."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Applicant email, case-insensitive")),
	), s.lookupApplicant)

	s.mcp.AddTool(mcp.NewTool("decide_application",
		mcp.WithDescription("Record an administrator decision. Approved and Declined dispatch a "+
			"communique to the applicant before the status is committed. Read the lifecycle "+
			"contract first via get_lifecycle_contract or the "+lifecycleURI+" resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status: Reviewed, Approved or Declined")),
		mcp.WithString("notes", mcp.Description("Replacement internal notes; omit to keep the current notes")),
	), s.decideApplication)

	s.mcp.AddTool(mcp.NewTool("list_waitlist",
		mcp.WithDescription("List waitlist entries newest first."),
	), s.listWaitlist)

	s.mcp.AddTool(mcp.NewTool("notify_waitlist",
		mcp.WithDescription("Summon every waitlisted seeker. Requires an open admissions cycle."),
	), s.notifyWaitlist)

	s.mcp.AddTool(mcp.NewTool("set_cycle",
		mcp.WithDescription("Open or close the admissions cycle."),
		mcp.WithBoolean("open", mcp.Required(), mcp.Description("true to open intake, false to close it")),
	), s.setCycle)

	s.mcp.AddTool(mcp.NewTool("get_lifecycle_contract",
		mcp.WithDescription("Returns the application lifecycle rules. "+
			"Call this before deciding applications."),
	), s.getLifecycleContract)

	s.mcp.AddResource(
		mcp.NewResource(lifecycleURI, "Application Lifecycle Contract",
			mcp.WithResourceDescription("Statuses, allowed transitions, dispatch and waitlist rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLifecycleResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a service error into a tool-level error result.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listApplications(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status models.Status
	if raw := req.GetString("status", ""); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", raw)), nil
		}
		status = st
	}
	return jsonResult(s.svc.List(status))
}

func (s *Server) getApplication(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	app, err := s.svc.Get(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(app)
}

func (s *Server) lookupApplicant(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	app, err := s.svc.Lookup(email)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(app)
}

func (s *Server) decideApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, ok := models.ParseStatus(raw)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status: %s", raw)), nil
	}

	in := admissions.DecideInput{Status: status}
	if v, present := req.GetArguments()["notes"]; present {
		notes, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("notes must be a string"), nil
		}
		in.Notes = &notes
	}

	app, err := s.svc.Decide(ctx, id, in)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(app)
}

func (s *Server) listWaitlist(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Waitlist())
}

func (s *Server) notifyWaitlist(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.NotifyWaitlist(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) setCycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	open, err := req.RequireBool("open")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetCycle(ctx, open); err != nil {
		return toolError(err), nil
	}
	state := "closed"
	if open {
		state = "open"
	}
	return mcp.NewToolResultText("admissions cycle is " + state), nil
}

func (s *Server) getLifecycleContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LifecycleContract), nil
}

func (s *Server) readLifecycleResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      lifecycleURI,
			MIMEType: "text/markdown",
			Text:     LifecycleContract,
		},
	}, nil
}
