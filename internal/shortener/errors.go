package shortener

import (
	"errors"

	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/tagcheck"
)

var (
	ErrInvalidURL  = errors.New("invalid url")
	ErrBlockedHost = errors.New("url host is blacklisted")
	ErrTagExists   = errors.New("tag already exists")
	ErrBadTag      = errors.New("invalid tag")
)

// User-facing texts.
const (
	msgInvalidURL  = "Sorry, you need to provide a valid URL."
	msgBlockedHost = "Sorry, links to this domain are not allowed."
	msgTagExists   = "Short URL already exists."
	msgBadTag      = "Invalid URL tag."
	msgNotFound    = "Short URL not found."
	msgFailure     = "Sorry, something went wrong. Please try again."
)

// Message returns the text shown to the user for an error returned by Service.
func Message(err error) string {
	var rej *tagcheck.RejectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rej):
		return rej.Outcome.Message()
	case errors.Is(err, ErrInvalidURL):
		return msgInvalidURL
	case errors.Is(err, ErrBlockedHost):
		return msgBlockedHost
	case errors.Is(err, ErrTagExists):
		return msgTagExists
	case errors.Is(err, ErrBadTag):
		return msgBadTag
	case errx.Is(err, errx.NotFound):
		return msgNotFound
	default:
		return msgFailure
	}
}
