// In file: internal/bridge/errors.go
package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// FailureKind classifies what went wrong during a tool call. Every failed
// call produces exactly one kind; a call never returns both a result and a
// failure.
type FailureKind string

const (
	// KindTimeout means the tool server produced no reply within the
	// configured deadline. The child process has already been killed.
	KindTimeout FailureKind = "timeout"

	// KindTransport means the process could not be spawned, or it exited
	// with a non-zero status before delivering a reply.
	KindTransport FailureKind = "transport"

	// KindProtocol means the process replied, but its output was not valid
	// framed JSON-RPC (or the nested content text was not valid JSON).
	KindProtocol FailureKind = "protocol"

	// KindRemote means the tool server itself reported an error in its
	// JSON-RPC reply. The original error payload is preserved in Remote.
	KindRemote FailureKind = "remote"
)

// Failure is the classified error returned by the Bridge. It is always
// explicit: callers inspect the Kind (typically via errors.As) to decide
// how to surface it.
type Failure struct {
	Kind    FailureKind
	Message string
	// Remote holds the tool server's own error payload, verbatim,
	// when Kind is KindRemote.
	Remote json.RawMessage
}

func (f *Failure) Error() string {
	return fmt.Sprintf("tool call failed (%s): %s", f.Kind, f.Message)
}

// HTTPStatus maps the failure kind onto the status code an HTTP caller
// should receive. Timeouts are the gateway's fault domain (504); everything
// else is an upstream/internal failure (500).
func (f *Failure) HTTPStatus() int {
	if f.Kind == KindTimeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ErrorBody returns the JSON-compatible value to place in the HTTP error
// response. For remote failures this is the server's payload verbatim,
// never a paraphrase.
func (f *Failure) ErrorBody() any {
	if f.Kind == KindRemote && len(f.Remote) > 0 {
		return f.Remote
	}
	return f.Message
}

func newFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
