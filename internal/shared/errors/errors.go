package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindResolution    Kind = "resolution"
	KindLoad          Kind = "load"
	KindUsage         Kind = "usage"
)

// Sentinels matched by errors.Is against any Error of the same Kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrResolution    = errors.New("resolution error")
	ErrLoad          = errors.New("load failure")
	ErrUsage         = errors.New("usage error")
)

// Error is the structured error type used throughout the catalog and loader
type Error struct {
	Cause       error
	Kind        Kind
	ContentID   string
	DisplayName string
	Container   string
	Detail      string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.ContentID != "" {
		b.WriteString(" content ")
		b.WriteString(e.ContentID)
		if e.DisplayName != "" {
			b.WriteString(" (")
			b.WriteString(e.DisplayName)
			b.WriteByte(')')
		}
	}

	if e.Container != "" {
		b.WriteString(" in container ")
		b.WriteString(e.Container)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match on Kind;
// the package sentinels match every Error of their Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return target == sentinel(e.Kind)
}

func sentinel(kind Kind) error {
	switch kind {
	case KindConfiguration:
		return ErrConfiguration
	case KindResolution:
		return ErrResolution
	case KindLoad:
		return ErrLoad
	case KindUsage:
		return ErrUsage
	default:
		return nil
	}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Content sets the content id and display name
func (b *Builder) Content(id, displayName string) *Builder {
	b.err.ContentID = id
	b.err.DisplayName = displayName
	return b
}

// Container sets the container name
func (b *Builder) Container(name string) *Builder {
	b.err.Container = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DuplicateContent reports a content id listed twice in one container
func DuplicateContent(container, id string, first, dup int) *Error {
	return &Error{
		Kind:      KindConfiguration,
		ContentID: id,
		Container: container,
		Detail:    fmt.Sprintf("duplicate content id at index %d (keeping index %d)", dup, first),
	}
}

// EmptyContentID reports a handle without a content id
func EmptyContentID(displayName string) *Error {
	return &Error{
		Kind:        KindResolution,
		DisplayName: displayName,
		Detail:      "empty content id",
	}
}

// SharedContent reports a content id listed by more than one descriptor.
// The first descriptor owns it.
func SharedContent(id string, descriptors []string) *Error {
	e := &Error{
		Kind:      KindConfiguration,
		ContentID: id,
		Detail:    fmt.Sprintf("content id listed by descriptors %s", strings.Join(descriptors, ", ")),
	}
	if len(descriptors) > 0 {
		e.Container = descriptors[0]
	}
	return e
}

// NoContainer reports an id that no container lists
func NoContainer(id, displayName string) *Error {
	return &Error{
		Kind:        KindResolution,
		ContentID:   id,
		DisplayName: displayName,
		Detail:      "no container lists this content id",
	}
}

// ContainerNotOpen reports an owning container that failed to open
func ContainerNotOpen(id, displayName, container string) *Error {
	return &Error{
		Kind:        KindResolution,
		ContentID:   id,
		DisplayName: displayName,
		Container:   container,
		Detail:      "container is not open",
	}
}

// LoadFailed reports a host load that produced nothing
func LoadFailed(id, displayName, container string, cause error) *Error {
	return &Error{
		Kind:        KindLoad,
		ContentID:   id,
		DisplayName: displayName,
		Container:   container,
		Detail:      "host returned no object",
		Cause:       cause,
	}
}

// TypeMismatch reports a resolved object that does not satisfy the requested type
func TypeMismatch(id, displayName, container, want string, got any) *Error {
	return &Error{
		Kind:        KindLoad,
		ContentID:   id,
		DisplayName: displayName,
		Container:   container,
		Detail:      fmt.Sprintf("resolved object is %T, want %s", got, want),
	}
}

// EarlyResult reports GetAsyncResult called before the request finished
func EarlyResult(id, displayName, detail string) *Error {
	return &Error{
		Kind:        KindUsage,
		ContentID:   id,
		DisplayName: displayName,
		Detail:      detail,
	}
}

// KindOf returns the Kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
