package tagcheck

import "fmt"

// Outcome is the result of validating a tag.
type Outcome uint8

const (
	Accepted Outcome = iota
	// RejectedEmpty means no tag was given; callers generate one instead of failing.
	RejectedEmpty
	RejectedReserved
	RejectedBlacklisted
	RejectedNonASCII
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "Accepted"
	case RejectedEmpty:
		return "RejectedEmpty"
	case RejectedReserved:
		return "RejectedReserved"
	case RejectedBlacklisted:
		return "RejectedBlacklisted"
	case RejectedNonASCII:
		return "RejectedNonASCII"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// Message is the text shown to the person who submitted the tag.
func (o Outcome) Message() string {
	switch o {
	case Accepted:
		return ""
	case RejectedEmpty:
		return "Sorry, the custom tag cannot be empty."
	case RejectedReserved:
		return "Sorry, custom tags cannot contain . # $ [ ] or /."
	case RejectedBlacklisted:
		return "Sorry, no blacklisted words are allowed in custom tags."
	case RejectedNonASCII:
		return "Sorry, no special characters are allowed in custom tags."
	default:
		return "Sorry, this custom tag is not allowed."
	}
}

// RejectionError reports a rejected tag. It is wrapped in an errx.Invalid
// error by the shortener so handlers can show Message to the user.
type RejectionError struct {
	Outcome Outcome
}

func (e *RejectionError) Error() string { return e.Outcome.Message() }

// Err returns nil for Accepted and a *RejectionError otherwise.
func (o Outcome) Err() error {
	if o == Accepted {
		return nil
	}
	return &RejectionError{Outcome: o}
}
