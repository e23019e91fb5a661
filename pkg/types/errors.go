package types

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors. DomainError values match the sentinel of their kind
// under errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalid          = errors.New("invalid request")
	ErrReadOnly         = errors.New("field is read-only")
	ErrConfig           = errors.New("invalid configuration")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidValueType = errors.New("invalid value type")
)

// Storage lifecycle errors.
var (
	ErrDetached        = errors.New("storage is detached")
	ErrAlreadyAttached = errors.New("storage is already attached")
)

// ErrorKind classifies a DomainError.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindInvalid
	KindReadOnly
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalid:
		return ErrInvalid
	case KindReadOnly:
		return ErrReadOnly
	}
	return nil
}

// DomainError is an intentional, structured failure raised by the handler
// or storage layer. Status, Message, and Info are safe to show to clients;
// Cause is internal context only.
type DomainError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Info    map[string]any
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Is matches the sentinel for the error's kind.
func (e *DomainError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *DomainError) Unwrap() error { return e.Cause }

// MissingRef names the ids of one class that were not found.
type MissingRef struct {
	Class string   `json:"class"`
	IDs   []string `json:"ids"`
}

// NotFound builds a 404 DomainError for ids of class.
func NotFound(class string, ids ...string) *DomainError {
	return notFound([]MissingRef{{Class: class, IDs: ids}})
}

func notFound(missing []MissingRef) *DomainError {
	parts := make([]string, 0, len(missing))
	for _, m := range missing {
		quoted := make([]string, len(m.IDs))
		for i, id := range m.IDs {
			quoted[i] = "'" + id + "'"
		}
		parts = append(parts, fmt.Sprintf("%s %s", m.Class, strings.Join(quoted, ", ")))
	}
	return &DomainError{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: "The specified resources do not exist: " + strings.Join(parts, "; ") + ".",
		Info:    map[string]any{"missing": missing},
	}
}

// MergeNotFound combines NotFound errors into one that lists every missing
// id. Nil entries are skipped. Any error that is not a NotFound DomainError
// is returned as is, taking precedence over the not-found ones.
func MergeNotFound(errs ...error) error {
	byClass := map[string][]string{}
	var order []string
	for _, err := range errs {
		if err == nil {
			continue
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Kind != KindNotFound {
			return err
		}
		missing, _ := de.Info["missing"].([]MissingRef)
		for _, m := range missing {
			if _, seen := byClass[m.Class]; !seen {
				order = append(order, m.Class)
			}
			byClass[m.Class] = append(byClass[m.Class], m.IDs...)
		}
	}
	if len(order) == 0 {
		return nil
	}
	merged := make([]MissingRef, 0, len(order))
	for _, class := range order {
		ids := byClass[class]
		sort.Strings(ids)
		merged = append(merged, MissingRef{Class: class, IDs: ids})
	}
	return notFound(merged)
}

// Invalid builds a 400 DomainError.
func Invalid(info map[string]any, format string, args ...any) *DomainError {
	return &DomainError{
		Kind:    KindInvalid,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Info:    info,
	}
}

// ReadOnlyField builds the DomainError for a write to a read-only
// relationship field.
func ReadOnlyField(class, field string) *DomainError {
	return &DomainError{
		Kind:    KindReadOnly,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("The field '%s' of %s is read-only.", field, class),
		Info:    map[string]any{"class": class, "field": field},
	}
}

// ConfigError reports an invalid schema or route declaration. It is raised
// at startup, never per request.
type ConfigError struct {
	Subject string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Configf builds a ConfigError.
func Configf(subject, format string, args ...any) *ConfigError {
	return &ConfigError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}

// NoLink builds the 404 DomainError for a missing relationship instance
// between idA and idB.
func NoLink(relationship, idA, idB string) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("There is no %s relationship between '%s' and '%s'.", relationship, idA, idB),
		Info:    map[string]any{"relationship": relationship, "ids": []string{idA, idB}},
	}
}
