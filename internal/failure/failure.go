// Package failure defines the error kinds surfaced by fg operations.
package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so callers can react without matching strings.
type Kind string

const (
	InvalidArgument        Kind = "invalid_argument"
	InvalidManifest        Kind = "invalid_manifest"
	UnsupportedPlatform    Kind = "unsupported_platform"
	UnsupportedFormat      Kind = "unsupported_format"
	MissingDownload        Kind = "missing_download"
	ProvisionFailure       Kind = "provision_failure"
	ExecutableNotFound     Kind = "executable_not_found"
	DependencyFetchFailure Kind = "dependency_fetch_failure"
	MissingManifest        Kind = "missing_manifest"
	NotInstalled           Kind = "not_installed"
	VersionInUse           Kind = "version_in_use"
	RuntimeNotResolvable   Kind = "runtime_not_resolvable"
	ArtifactMissing        Kind = "artifact_missing"
	LaunchFailure          Kind = "launch_failure"
	RegistryFailure        Kind = "registry_failure"
)

// Error carries a Kind, the failing operation and optional key/value context.
type Error struct {
	Kind    Kind
	Op      string
	Context map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	} else {
		b.WriteString(string(e.Kind))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// With returns e after recording a context value.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New builds an error of the given kind with a formatted operation message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and operation to err. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err}
}

// From is Wrap for callers that want to attach context; err must be non-nil.
func From(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}
