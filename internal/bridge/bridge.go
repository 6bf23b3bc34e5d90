// In file: internal/bridge/bridge.go

// Package bridge performs single-shot JSON-RPC tool calls against the
// external VegaMCP tool server over stdio.
//
// Every call spawns a fresh server process, writes exactly one JSON-RPC
// request to its stdin, closes the stream, and reads the single reply from
// its stdout. One process per call means there is never more than one
// request in flight on a stdio channel, so no request/response correlation
// is needed — an explicit trade of per-call startup latency for simplicity
// and isolation. The bridge never retries and shares no state between calls.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	jsonRPCVersion = "2.0"
	callMethod     = "tools/call"

	// requestID is fixed. Each call owns its own process, so the id never
	// has to disambiguate concurrent requests.
	requestID = 1

	// stderrLimit bounds how much of the child's error stream is carried
	// into a transport failure message.
	stderrLimit = 500

	// DefaultTimeout bounds the full request/reply cycle, after which the
	// child process is killed.
	DefaultTimeout = 30 * time.Second
)

// ProcessRunner launches the tool-server process, feeds it input on stdin,
// and returns its captured stdout and stderr. Tests substitute a fake
// runner; production uses ExecRunner.
type ProcessRunner interface {
	Run(ctx context.Context, dir, command string, args []string, input []byte) (stdout, stderr []byte, err error)
}

// ExecRunner runs the process via os/exec. The context bounds the process
// lifetime: when the deadline passes, the child is killed.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, command string, args []string, input []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Config holds the settings for reaching the tool server. It is built once
// from application configuration and injected, never read from globals, so
// tests can point the bridge at a fake server.
type Config struct {
	// Command is the executable that runs the server (default "node").
	Command string
	// Args are passed to Command; by default the single server entry point
	// derived from the installation root.
	Args []string
	// Dir is the child's working directory (default the installation root).
	Dir string
	// Timeout bounds one full call (default DefaultTimeout).
	Timeout time.Duration
	// Runner launches the process (default ExecRunner).
	Runner ProcessRunner
}

// Bridge performs one request/reply cycle per CallTool invocation.
type Bridge struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	runner  ProcessRunner
}

// New creates a Bridge for the tool server installed at the given root.
// Zero-valued Config fields fall back to defaults derived from root.
func New(root string, cfg Config) *Bridge {
	b := &Bridge{
		command: cfg.Command,
		args:    cfg.Args,
		dir:     cfg.Dir,
		timeout: cfg.Timeout,
		runner:  cfg.Runner,
	}
	if b.command == "" {
		b.command = "node"
	}
	if len(b.args) == 0 {
		b.args = []string{filepath.Join(root, "build", "index.js")}
	}
	if b.dir == "" {
		b.dir = root
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	return b
}

// rpcEnvelope is the fixed-shape JSON-RPC 2.0 request written to the child,
// serialized as a single line.
type rpcEnvelope struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// rpcReply is the decoded wire response: exactly one of Result or Error is
// meaningful.
type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// replyResult mirrors the MCP result shape: the payload proper is a JSON
// document nested in content[0].text.
type replyResult struct {
	Content []struct {
		Text *string `json:"text"`
	} `json:"content"`
}

// CallTool invokes the named tool with the given arguments and returns the
// decoded result payload, or a *Failure classifying what went wrong. The
// two outcomes are mutually exclusive.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	payload, err := json.Marshal(rpcEnvelope{
		JSONRPC: jsonRPCVersion,
		ID:      requestID,
		Method:  callMethod,
		Params:  rpcParams{Name: name, Arguments: arguments},
	})
	if err != nil {
		return nil, newFailure(KindProtocol, "encode request for %q: %v", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	stdout, stderr, runErr := b.runner.Run(ctx, b.dir, b.command, b.args, payload)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, newFailure(KindTimeout, "no reply from tool server within %s", b.timeout)
	}
	if runErr != nil {
		detail := truncate(strings.TrimSpace(string(stderr)), stderrLimit)
		if detail == "" {
			detail = runErr.Error()
		}
		return nil, newFailure(KindTransport, "tool server error: %s", detail)
	}
	return decodeReply(stdout)
}

// decodeReply parses the child's stdout into the final result payload. Only
// the last non-empty line is authoritative; the server may emit diagnostic
// lines before the JSON-RPC reply.
func decodeReply(stdout []byte) (json.RawMessage, error) {
	line := lastNonEmptyLine(string(stdout))
	if line == "" {
		return nil, newFailure(KindProtocol, "tool server produced no output")
	}

	var reply rpcReply
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return nil, newFailure(KindProtocol, "invalid reply from tool server: %v", err)
	}

	if len(reply.Error) > 0 && string(reply.Error) != "null" {
		f := newFailure(KindRemote, "tool server reported an error: %s", reply.Error)
		f.Remote = reply.Error
		return nil, f
	}

	var result replyResult
	if len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, &result); err != nil {
			return nil, newFailure(KindProtocol, "invalid result payload: %v", err)
		}
	}

	// The payload proper lives in content[0].text; a reply with no content
	// (or no text field) decodes to an empty object.
	text := "{}"
	if len(result.Content) > 0 && result.Content[0].Text != nil {
		text = *result.Content[0].Text
	}
	var decoded json.RawMessage
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, newFailure(KindProtocol, "tool result text is not valid JSON: %v", err)
	}
	return decoded, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// String describes the bridge target for log lines.
func (b *Bridge) String() string {
	return fmt.Sprintf("%s %s (cwd %s)", b.command, strings.Join(b.args, " "), b.dir)
}
