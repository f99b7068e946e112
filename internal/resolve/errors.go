package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError indicates no live instance matched the specifier. Terminal:
// never retried.
type NotFoundError struct {
	Specifier string
	Known     []string
}

func (e *NotFoundError) Error() string {
	if e.Specifier == "" {
		return "no editor instance is currently running"
	}
	msg := fmt.Sprintf("no instance matches %q", e.Specifier)
	if len(e.Known) > 0 {
		msg += "; known instances: " + strings.Join(e.Known, ", ")
	}
	return msg
}

// AmbiguousError indicates the specifier matched two or more instances. The
// message enumerates the candidates; an arbitrary pick is never made.
type AmbiguousError struct {
	Specifier string
	Matches   []string
}

func (e *AmbiguousError) Error() string {
	if e.Specifier == "" {
		return fmt.Sprintf("multiple instances are running (%s); select one explicitly",
			strings.Join(e.Matches, ", "))
	}
	return fmt.Sprintf("%q is ambiguous: matches %s", e.Specifier, strings.Join(e.Matches, ", "))
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsAmbiguous reports whether err is an AmbiguousError.
func IsAmbiguous(err error) bool {
	var ambiguous *AmbiguousError
	return errors.As(err, &ambiguous)
}
