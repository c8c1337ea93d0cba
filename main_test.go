package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kartoza/stunting-predictor/internal/nn"
	"github.com/kartoza/stunting-predictor/internal/nn/nntest"
)

func TestFindAvailablePortSkipsBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	port, err := findAvailablePort(busy, 5)
	if err != nil {
		t.Fatalf("findAvailablePort failed: %v", err)
	}
	if port == busy {
		t.Errorf("Expected a port other than %d", busy)
	}
	if port < busy || port >= busy+5 {
		t.Errorf("Expected port in [%d, %d), got %d", busy, busy+5, port)
	}
}

func TestWaitForServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := l.Addr().String()

	if !waitForServer("http://"+addr, time.Second) {
		t.Error("Expected listening server to be ready")
	}

	l.Close()
	if waitForServer("http://"+addr, 300*time.Millisecond) {
		t.Error("Expected closed port to time out")
	}
}

func TestRunStopsOnBadModel(t *testing.T) {
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "model.npz")
	nntest.WriteNPZ(t, modelPath, nntest.Arrays(), "W2")

	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	logPath := filepath.Join(dir, "app.log")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgData := fmt.Sprintf("server:\n  port: %d\nlog:\n  file: %s\n", port, logPath)
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0o644); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- run([]string{"-config", cfgPath, "-model", modelPath, "-headless"})
	}()

	select {
	case err = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return for a model without W2")
	}

	var le *nn.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *nn.LoadError, got %v", err)
	}
	if le.Array != "W2" {
		t.Errorf("Expected missing array W2, got %q", le.Array)
	}

	if conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond); err == nil {
		conn.Close()
		t.Errorf("Expected nothing listening on port %d", port)
	}

	// The reason is flushed to the log file before run returns
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "failed to load model") || !strings.Contains(string(data), `"array":"W2"`) {
		t.Errorf("Expected model failure in log, got %s", data)
	}
}

func TestRunVersion(t *testing.T) {
	if err := run([]string{"-version"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunRejectsInvalidPort(t *testing.T) {
	err := run([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml"), "-port", "70000"})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
