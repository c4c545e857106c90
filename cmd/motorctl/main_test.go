package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/motorctl/internal/config"
	"github.com/danmuck/motorctl/internal/testutil/testlog"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestQueryAgainstSimActuator(t *testing.T) {
	testlog.Start(t)
	out, err := execute(t, context.Background(), "query", "--transport", "sim", "--id", "4")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "gain_term=0.250") || !strings.Contains(out, "mode=0") {
		t.Fatalf("unexpected query output %q", out)
	}
}

func TestStopAgainstSimActuator(t *testing.T) {
	testlog.Start(t)
	out, err := execute(t, context.Background(), "stop", "--transport", "sim")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(out, "stopped") {
		t.Fatalf("unexpected stop output %q", out)
	}
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := execute(t, ctx, "run", "--transport", "sim", "--velocity", "5"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "motorctl.toml")
	body := "id = 7\n[transport]\nkind = \"socketcan\"\ninterface = \"vcan1\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// The file selects socketcan on vcan1; the flag switches to the simulator.
	out, err := execute(t, context.Background(), "query", "--config", path, "--transport", "sim")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "velocity=0.000") {
		t.Fatalf("unexpected query output %q", out)
	}
}

func TestRejectsBadID(t *testing.T) {
	testlog.Start(t)
	_, err := execute(t, context.Background(), "query", "--transport", "sim", "--id", "300")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestConfigInitPrintsTemplate(t *testing.T) {
	testlog.Start(t)
	out, err := execute(t, context.Background(), "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if out != config.Template() {
		t.Fatalf("template output mismatch")
	}
}
