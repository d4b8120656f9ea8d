package mcp

import (
	"context"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/world"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bp, err := world.Load("lab")
	if err != nil {
		t.Fatal(err)
	}
	w, err := world.Build(bp, world.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Scheduler.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return New(w.Scheduler, Config{Host: w.Start.Host, Login: w.Start.Login, Logger: zerolog.Nop()})
}

func TestCommandRunsOnTerminal(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleCommand(ctx, &mcpsdk.CallToolRequest{}, CommandInput{Line: "connect 10.0.0.2 -l user --password user"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Prompt != "user@beta:/home/user$" {
		t.Errorf("unexpected prompt %q", out.Prompt)
	}

	_, st, err := s.handleStatus(ctx, &mcpsdk.CallToolRequest{}, EmptyInput{})
	if err != nil {
		t.Fatal(err)
	}
	if st.HostID != "beta" || st.Hops != 1 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestCommandFailureIsToolError(t *testing.T) {
	s := newTestServer(t)
	result, out, err := s.handleCommand(context.Background(), &mcpsdk.CallToolRequest{}, CommandInput{Line: "frobnicate"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result")
	}
	if out.Code != "unknown_command" || len(out.Lines) != 1 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestCallReturnsResultMap(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleCall(ctx, &mcpsdk.CallToolRequest{}, CallInput{Name: "net.scan", Args: map[string]any{"target": "10.0.0.2"}})
	if err != nil {
		t.Fatal(err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got %v", out.Result)
	}
	if out.Result["host"] != "beta" {
		t.Errorf("unexpected result %v", out.Result)
	}

	result, out, err = s.handleCall(ctx, &mcpsdk.CallToolRequest{}, CallInput{Name: "no.such"})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil || !result.IsError || out.Result["code"] != "unknown_command" {
		t.Errorf("expected unknown_command tool error, got %v", out.Result)
	}
}

func TestInterruptAndOutput(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleCommand(ctx, &mcpsdk.CallToolRequest{}, CommandInput{Line: "sleep 30"})
	if err != nil || out.RunID == "" {
		t.Fatalf("expected background run, got %+v %v", out, err)
	}
	_, ir, err := s.handleInterrupt(ctx, &mcpsdk.CallToolRequest{}, EmptyInput{})
	if err != nil || !ir.Interrupted {
		t.Fatalf("expected interrupt, got %+v %v", ir, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, st, _ := s.handleStatus(ctx, &mcpsdk.CallToolRequest{}, EmptyInput{})
		if !st.Running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("program still running after interrupt")
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, lines, err := s.handleOutput(ctx, &mcpsdk.CallToolRequest{}, EmptyInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(lines.Lines) != 1 || lines.Lines[0] != "^C killed" {
		t.Errorf("unexpected output %v", lines.Lines)
	}
}
