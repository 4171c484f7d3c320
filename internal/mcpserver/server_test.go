package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
	"github.com/starford/chancery/internal/storage"
	"github.com/starford/chancery/internal/testutil"
)

func testServer(t *testing.T) (*Server, *admissions.Service) {
	t.Helper()
	store := storage.NewStore(storage.NewMemory(), testutil.Logger())
	svc := testutil.Service(t, store, dispatch.WithGenerator(scribe.Static("Your path is set.")))
	return New(svc), svc
}

func submit(t *testing.T, svc *admissions.Service, email string) models.Application {
	t.Helper()
	app, err := svc.Submit(context.Background(), admissions.SubmitInput{
		FullName:   "Ada Obi",
		Email:      email,
		Phone:      "+234 800 000",
		Program:    "Nexus",
		Experience: "youth ministry",
		Statement:  "I seek formation.",
	})
	if err != nil {
		t.Fatal(err)
	}
	return app
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_applications":
		result, err = srv.listApplications(ctx, req)
	case "get_application":
		result, err = srv.getApplication(ctx, req)
	case "lookup_applicant":
		result, err = srv.lookupApplicant(ctx, req)
	case "decide_application":
		result, err = srv.decideApplication(ctx, req)
	case "list_waitlist":
		result, err = srv.listWaitlist(ctx, req)
	case "notify_waitlist":
		result, err = srv.notifyWaitlist(ctx, req)
	case "set_cycle":
		result, err = srv.setCycle(ctx, req)
	case "get_lifecycle_contract":
		result, err = srv.getLifecycleContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeResult(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
}

func TestListApplications(t *testing.T) {
	srv, svc := testServer(t)
	submit(t, svc, "a@example.com")
	submit(t, svc, "b@example.com")

	var apps []models.Application
	decodeResult(t, callTool(t, srv, "list_applications", map[string]interface{}{}), &apps)
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}
	if apps[0].Email != "b@example.com" {
		t.Errorf("first = %s, want newest first", apps[0].Email)
	}

	decodeResult(t, callTool(t, srv, "list_applications", map[string]interface{}{"status": "Approved"}), &apps)
	if len(apps) != 0 {
		t.Errorf("approved filter returned %d", len(apps))
	}

	r := callTool(t, srv, "list_applications", map[string]interface{}{"status": "Pending"})
	if !r.IsError {
		t.Error("expected error for unknown status")
	}
}

func TestGetApplicationMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_application", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Fatal("expected error for missing application")
	}
	if resultText(r) != "not found" {
		t.Errorf("text = %q", resultText(r))
	}

	r = callTool(t, srv, "get_application", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when id is absent")
	}
}

func TestLookupApplicant(t *testing.T) {
	srv, svc := testServer(t)
	submit(t, svc, "seeker@example.com")

	var app models.Application
	decodeResult(t, callTool(t, srv, "lookup_applicant", map[string]interface{}{"email": "SEEKER@example.com"}), &app)
	if app.Email != "seeker@example.com" {
		t.Errorf("email = %s", app.Email)
	}
}

func TestDecideApplication(t *testing.T) {
	srv, svc := testServer(t)
	created := submit(t, svc, "seeker@example.com")

	var app models.Application
	decodeResult(t, callTool(t, srv, "decide_application", map[string]interface{}{
		"id":     created.ID,
		"status": "Approved",
		"notes":  "strong calling",
	}), &app)

	if app.Status != models.StatusApproved {
		t.Errorf("status = %s", app.Status)
	}
	if app.InternalNotes != "strong calling" {
		t.Errorf("notes = %q", app.InternalNotes)
	}
	if len(app.CommuniqueHistory) != 1 {
		t.Fatalf("communiques = %d, want 1", len(app.CommuniqueHistory))
	}
	if app.Stature == nil {
		t.Error("approval should attach stature")
	}

	// Omitting notes keeps them.
	decodeResult(t, callTool(t, srv, "decide_application", map[string]interface{}{
		"id":     created.ID,
		"status": "Approved",
	}), &app)
	if app.InternalNotes != "strong calling" {
		t.Errorf("notes after no-notes decision = %q", app.InternalNotes)
	}
}

func TestDecideApplicationRejectsBackwardTransition(t *testing.T) {
	srv, svc := testServer(t)
	created := submit(t, svc, "seeker@example.com")
	callTool(t, srv, "decide_application", map[string]interface{}{"id": created.ID, "status": "Reviewed"})

	r := callTool(t, srv, "decide_application", map[string]interface{}{"id": created.ID, "status": "New"})
	if !r.IsError {
		t.Fatal("expected error for Reviewed -> New")
	}

	r = callTool(t, srv, "decide_application", map[string]interface{}{"id": created.ID, "status": "Maybe"})
	if !r.IsError || !strings.Contains(resultText(r), "unknown status") {
		t.Errorf("unexpected result for bad status: %q", resultText(r))
	}
}

func TestWaitlistTools(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "notify_waitlist", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for empty waitlist")
	}

	if _, _, err := svc.JoinWaitlist(context.Background(), "w1@example.com"); err != nil {
		t.Fatal(err)
	}

	var entries []models.WaitlistEntry
	decodeResult(t, callTool(t, srv, "list_waitlist", map[string]interface{}{}), &entries)
	if len(entries) != 1 {
		t.Fatalf("waitlist = %d entries", len(entries))
	}

	var res dispatch.BulkResult
	decodeResult(t, callTool(t, srv, "notify_waitlist", map[string]interface{}{}), &res)
	if res.Recipients != 1 {
		t.Errorf("recipients = %d", res.Recipients)
	}
	if len(svc.Waitlist()) != 1 {
		t.Error("notify must not clear the waitlist")
	}
}

func TestSetCycle(t *testing.T) {
	srv, svc := testServer(t)

	r := callTool(t, srv, "set_cycle", map[string]interface{}{"open": false})
	if got := resultText(r); got != "admissions cycle is closed" {
		t.Errorf("text = %q", got)
	}
	if svc.CycleOpen() {
		t.Error("cycle should be closed")
	}

	if _, _, err := svc.JoinWaitlist(context.Background(), "w1@example.com"); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "notify_waitlist", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error while cycle is closed")
	}

	r = callTool(t, srv, "set_cycle", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when open is absent")
	}
}

func TestLifecycleContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_lifecycle_contract", map[string]interface{}{})
	if resultText(r) != LifecycleContract {
		t.Error("contract text mismatch")
	}

	contents, err := srv.readLifecycleResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != lifecycleURI {
		t.Errorf("resource = %#v", contents[0])
	}
}
