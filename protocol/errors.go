package protocol

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/persontime/timeline"
)

// Protocol error codes (E500-E549). Stage-level problems surface under
// their own codes (exposure E1xx, intersection E2xx, events E3xx).
const (
	ErrNotFound timeline.ErrorCode = "E500" // protocol path missing or not a directory
	ErrNoFiles  timeline.ErrorCode = "E501" // no .cue files under the path
	ErrLoad     timeline.ErrorCode = "E502" // CUE loader rejected the instance
	ErrBuild    timeline.ErrorCode = "E503" // CUE evaluation failed
	ErrField    timeline.ErrorCode = "E504" // wrong type or unknown field name
	ErrEnum     timeline.ErrorCode = "E505" // enum string outside its vocabulary
	ErrMissing  timeline.ErrorCode = "E506" // required element absent
)

// CompileError is one protocol problem, positioned in the CUE source when
// the position is known.
type CompileError struct {
	Code    timeline.ErrorCode
	Path    string // protocol path, e.g. "protocol.exposure.overlap"
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// CompileErrors aggregates every problem found in one compilation.
type CompileErrors []*CompileError

// Error implements the error interface.
func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ce := range e {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("%d protocol errors: %s", len(e), strings.Join(msgs, "; "))
}
