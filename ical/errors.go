package ical

import "fmt"

// Error types
type ErrorType string

const (
	// ErrStructural marks malformed base syntax: unterminated BEGIN,
	// missing VCALENDAR wrapper, an unparseable content line. Structural
	// errors abort the whole parse with no partial result.
	ErrStructural ErrorType = "structural"
	// ErrMissingProperty marks a component lacking a required property
	// (UID, DTSTART). The component is skipped, siblings still parse.
	ErrMissingProperty ErrorType = "missing_property"
	// ErrBadRecurrence marks an RRULE value the rule parser rejected.
	ErrBadRecurrence ErrorType = "bad_recurrence"
	// ErrBadValue marks a property value that failed type decoding.
	ErrBadValue ErrorType = "bad_value"
)

// ParseError is the typed error surfaced by the parser.
type ParseError struct {
	Type      ErrorType
	Component string // component name (VEVENT, VTODO, ...) if known
	Property  string // property name the error relates to, if any
	Message   string
	Err       error
}

func (e *ParseError) Error() string {
	msg := string(e.Type)
	if e.Component != "" {
		msg += " in " + e.Component
	}
	if e.Property != "" {
		msg += " (" + e.Property + ")"
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func structuralError(message string, err error) *ParseError {
	return &ParseError{Type: ErrStructural, Message: message, Err: err}
}

func missingPropertyError(component, property string) *ParseError {
	return &ParseError{
		Type:      ErrMissingProperty,
		Component: component,
		Property:  property,
		Message:   "required property missing",
	}
}
