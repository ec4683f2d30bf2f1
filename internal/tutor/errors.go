package tutor

import "errors"

// Error kinds. Every *Error wraps exactly one of these.
var (
	// ErrConfiguration means no API credential could be resolved; no request was sent.
	ErrConfiguration = errors.New("ai credential is not configured")
	// ErrTransport covers network and provider failures.
	ErrTransport = errors.New("ai request failed")
	// ErrValidation means a structured response did not have the expected shape.
	ErrValidation = errors.New("ai response is invalid")
)

// Op names a gateway operation.
type Op string

const (
	OpQuizQuestion Op = "generate_quiz_question"
	OpTalkThrough  Op = "generate_talk_through"
	OpHint         Op = "generate_hint"
)

// Message is the user-facing text for a failed operation.
func (o Op) Message() string {
	switch o {
	case OpQuizQuestion:
		return "Failed to generate a new quiz question. Please try again."
	case OpTalkThrough:
		return "Could not get an AI explanation right now."
	case OpHint:
		return "Failed to get a hint."
	default:
		return "The AI request failed."
	}
}

// Error is returned by every Gateway operation. Its message is the same for all
// causes of one operation; use errors.Is with the kind sentinels to tell them apart.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string { return e.Op.Message() }

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the kind sentinel wrapped by err, or nil if err is not a gateway error.
func Kind(err error) error {
	for _, kind := range []error{ErrConfiguration, ErrTransport, ErrValidation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
