// setup.go - fixture server and results plumbing for the UI tests.
// NOTE: This is NOT a test file - it contains shared test infrastructure.

package ui

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// TestEnvironment serves the fixture pages over HTTP for the duration of
// one test, with a per-test results directory for logs and artifacts.
type TestEnvironment struct {
	Server     *http.Server
	BaseURL    string
	Port       int
	ResultsDir string
	TestLog    *os.File
}

// SetupTestEnvironment starts the fixture server on an ephemeral port.
func SetupTestEnvironment(testName string) (*TestEnvironment, error) {
	timestamp := time.Now().Format("20060102-150405")
	resultsDir := filepath.Join("results", fmt.Sprintf("%s-%s", testName, timestamp))
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	testLogPath := filepath.Join(resultsDir, "test.log")
	testLog, err := os.Create(testLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create test log file: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		testLog.Close()
		return nil, fmt.Errorf("failed to allocate fixture port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	server := &http.Server{
		Handler: http.FileServer(http.Dir("fixtures")),
	}

	env := &TestEnvironment{
		Server:     server,
		BaseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:       port,
		ResultsDir: resultsDir,
		TestLog:    testLog,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(testLog, "fixture server stopped: %v\n", err)
		}
	}()

	if err := env.waitReady(10 * time.Second); err != nil {
		env.Cleanup()
		return nil, err
	}

	fmt.Fprintf(testLog, "fixture server ready at %s\n", env.BaseURL)
	return env, nil
}

func (env *TestEnvironment) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(env.BaseURL + "/sorting.html")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("fixture server did not respond within %v", timeout)
}

// Cleanup stops the fixture server and closes the test log.
func (env *TestEnvironment) Cleanup() {
	if env.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		env.Server.Shutdown(ctx)
		cancel()
	}
	if env.TestLog != nil {
		env.TestLog.Close()
	}
}

// LogTest writes a message to both the test log file and the test output.
func (env *TestEnvironment) LogTest(t *testing.T, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if env.TestLog != nil {
		fmt.Fprintf(env.TestLog, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
	}
	t.Log(msg)
}

// browserAvailable reports whether a Chrome binary is on PATH. UI tests are
// skipped without one.
func browserAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
