// Package errnorm reshapes every error that reaches the transport boundary
// into one envelope. Domain errors keep their status, message and info.
// Request validation errors are parsed from their multi-line text. Storage
// backend errors and anything else collapse to a fixed 500 whose original
// error is kept for logging only.
package errnorm

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Fixed messages for errors whose details stay internal.
const (
	DatabaseMessage = "An error occurred in the database that we did not expect. Please let us know!"
	ServerMessage   = "An error occurred on the server that we did not expect. Please let us know!"
)

// Kind is the classification an Envelope was built from.
type Kind int

const (
	KindDomain Kind = iota + 1
	KindValidation
	KindBackend
	KindUnclassified
)

func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindValidation:
		return "validation"
	case KindBackend:
		return "backend"
	case KindUnclassified:
		return "unclassified"
	}
	return "unknown"
}

// Envelope is the uniform error body sent to clients.
type Envelope struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Info    map[string]any `json:"info,omitempty"`

	kind  Kind
	cause error
}

// Kind returns how the error was classified.
func (e *Envelope) Kind() Kind { return e.kind }

// Cause returns the original error. It is never serialized.
func (e *Envelope) Cause() error { return e.cause }

// coder is implemented by backend errors that carry a vendor code.
type coder interface {
	Code() string
}

// Normalizer classifies errors into envelopes. The zero value treats no
// error as a backend error.
type Normalizer struct {
	codePrefixes []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCodePrefix marks errors whose Code() starts with prefix as storage
// backend errors.
func WithCodePrefix(prefix string) Option {
	return func(n *Normalizer) { n.codePrefixes = append(n.codePrefixes, prefix) }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var (
	validationHead = regexp.MustCompile(`^\d\d\d Error:`)
	messageLine    = regexp.MustCompile(`(\d\d\d) Error: (.*)`)
	propertyLine   = regexp.MustCompile(`^(.*?): \s*(.*?)\s*$`)
	doubleQuoted   = regexp.MustCompile(`"([\w\-\s]+?)"`)
)

// Normalize never fails; a nil error yields nil.
func (n *Normalizer) Normalize(err error) *Envelope {
	if err == nil {
		return nil
	}

	var de *types.DomainError
	if errors.As(err, &de) {
		return &Envelope{Status: de.Status, Message: de.Message, Info: de.Info, kind: KindDomain, cause: err}
	}

	if validationHead.MatchString(err.Error()) {
		return parseValidation(err)
	}

	var c coder
	if errors.As(err, &c) {
		for _, p := range n.codePrefixes {
			if strings.HasPrefix(c.Code(), p) {
				return &Envelope{Status: http.StatusInternalServerError, Message: DatabaseMessage, kind: KindBackend, cause: err}
			}
		}
	}

	return &Envelope{Status: http.StatusInternalServerError, Message: ServerMessage, kind: KindUnclassified, cause: err}
}

func parseValidation(err error) *Envelope {
	env := &Envelope{
		Status: http.StatusBadRequest,
		Info:   map[string]any{},
		kind:   KindValidation,
		cause:  err,
	}
	var messages []string
	for i, line := range strings.Split(err.Error(), "\n") {
		if m := messageLine.FindStringSubmatch(line); m != nil {
			if i == 0 {
				env.Status, _ = strconv.Atoi(m[1])
			}
			messages = append(messages, doubleQuoted.ReplaceAllString(m[2], "'$1'"))
			continue
		}
		if m := propertyLine.FindStringSubmatch(line); m != nil {
			env.Info[strings.TrimSpace(m[1])] = unquote(m[2])
		}
	}
	env.Message = strings.Join(messages, " ")
	return env
}

// unquote strips one pair of surrounding double quotes. Quotes inside the
// value are kept.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}
