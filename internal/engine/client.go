package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultTimeout bounds one full stdin/stdout exchange with the engine.
const DefaultTimeout = 30 * time.Second

// killGracePeriod bounds how long a killed engine may keep its output
// pipes open before the exchange is abandoned anyway.
const killGracePeriod = time.Second

var (
	ErrUnavailable = errors.New("engine executable not found")
	ErrTimeout     = errors.New("engine exchange timed out")
	ErrExecution   = errors.New("engine failed")
	ErrProtocol    = errors.New("failed to parse engine output")
)

// Client - performs one request/response exchange with the external engine
// per call. Every call spawns a fresh process; nothing is shared between
// calls, so an engine crash never outlives the request that hit it.
type Client struct {
	logger *slog.Logger

	binPath string
	timeout time.Duration
}

func NewClient(logger *slog.Logger, binPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		logger: logger.With("component", "engine"),

		binPath: binPath,
		timeout: timeout,
	}
}

// ResolveBinPath - returns the default engine location relative to the
// server binary, with the platform executable suffix.
func ResolveBinPath(baseDir string) string {
	name := "web_cli"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	return filepath.Join(baseDir, "build", name)
}

// Invoke - writes one request document to a fresh engine process, closes its
// stdin and reads one response document back. Failures are classified in
// priority order: missing executable, timeout, non-zero exit, unparseable
// output. The process is killed once the exchange exceeds the timeout.
//
// The exchange is bounded only by the client's own timeout: the caller's
// cancellation is not propagated, so a dropped HTTP request never kills an
// engine process mid-search and the chosen move still lands in the session.
func (that *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	log := that.logger.With("command", req.Command)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal engine request: %w", err)
	}

	if _, err = os.Stat(that.binPath); err != nil {
		log.Error("engine binary is missing", "path", that.binPath)
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, that.binPath)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), that.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, that.binPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGracePeriod

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Error("engine exchange timed out", "timeout", that.timeout)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, that.timeout)
	}

	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())

		// The engine reports its own failures as an error document on
		// stdout; that message wins over raw stderr when present.
		var failure Response
		if jsonErr := json.Unmarshal(stdout.Bytes(), &failure); jsonErr == nil && failure.Error != "" {
			msg = failure.Error
		}

		if msg == "" {
			msg = runErr.Error()
		}

		log.Error("engine exited with an error", "error", msg, "elapsed", elapsed)

		return nil, fmt.Errorf("%w: %s", ErrExecution, msg)
	}

	var resp Response
	if err = json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		log.Error("engine produced unparseable output", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if !resp.Success {
		log.Error("engine reported a failure", "error", resp.Error)
		return nil, fmt.Errorf("%w: %s", ErrExecution, resp.Error)
	}

	log.Debug("engine exchange complete",
		"elapsed", elapsed, "moves", len(req.Moves), "game_over", resp.GameOver)

	return &resp, nil
}
