// Package tagcheck holds the syntactic and content rules applied to tags and
// destination URLs before anything touches the directory.
package tagcheck

import (
	_ "embed"
	"regexp"
	"strings"
	"unicode"
)

// ReservedChars are illegal in directory key paths.
const ReservedChars = ".#$[]"

//go:embed words.txt
var defaultWords string

// urlPattern accepts an optional http(s) scheme, a domain name or dotted-quad
// IPv4 host, and optional port, path, query string and fragment. It is a
// shape check only; nothing is resolved or fetched.
var urlPattern = regexp.MustCompile(`(?i)^(https?://)?` +
	`((([a-z\d]([a-z\d-]*[a-z\d])*)\.)+[a-z]{2,}|` +
	`((\d{1,3}\.){3}\d{1,3}))` +
	`(:\d+)?(/[-a-z\d%_.~+]*)*` +
	`(\?[;&a-z\d%_.~+=#-]*)?` +
	`(#[-a-z\d_]*)?$`)

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// Validator applies tag content rules and the host denylist. It is immutable
// after New and safe for concurrent use.
type Validator struct {
	words map[string]struct{}
	hosts map[string]struct{}
}

// Option configures a Validator.
type Option func(*Validator)

// WithWords adds disallowed words on top of the built-in list.
func WithWords(words ...string) Option {
	return func(v *Validator) {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				v.words[w] = struct{}{}
			}
		}
	}
}

// WithoutDefaultWords drops the built-in word list. Options are applied in
// order, so put it before WithWords.
func WithoutDefaultWords() Option {
	return func(v *Validator) {
		clear(v.words)
	}
}

// WithHosts sets the bare hostnames whose URLs are refused.
func WithHosts(hosts ...string) Option {
	return func(v *Validator) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				v.hosts[h] = struct{}{}
			}
		}
	}
}

// New returns a Validator seeded with the built-in disallowed words.
func New(opts ...Option) *Validator {
	v := &Validator{
		words: make(map[string]struct{}),
		hosts: make(map[string]struct{}),
	}
	WithWords(strings.Fields(defaultWords)...)(v)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks tag against the rules in order and stops at the first
// failure. Content rules (disallowed words, non-ASCII) only apply to tags a
// user typed; generated tags come from a fixed alphabet.
func (v *Validator) Validate(tag string, userSupplied bool) Outcome {
	tag = Normalize(tag)
	if tag == "" {
		return RejectedEmpty
	}
	if HasReserved(tag) {
		return RejectedReserved
	}
	if !userSupplied {
		return Accepted
	}
	// Short URLs route a single path segment.
	if strings.ContainsRune(tag, '/') {
		return RejectedReserved
	}
	if v.hasDisallowedWord(tag) {
		return RejectedBlacklisted
	}
	if !isASCII(tag) {
		return RejectedNonASCII
	}
	return Accepted
}

// hasDisallowedWord matches whole words only, case-insensitively. Word
// boundaries fall on anything that is not a letter or digit, so a disallowed
// word embedded inside a longer token is accepted.
func (v *Validator) hasDisallowedWord(tag string) bool {
	if len(v.words) == 0 {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToLower(tag), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if _, ok := v.words[tok]; ok {
			return true
		}
	}
	return false
}

// HostBlocked reports whether rawURL's host, with any scheme stripped, is on
// the denylist. Matching is exact: subdomains of a listed host are allowed.
func (v *Validator) HostBlocked(rawURL string) bool {
	if len(v.hosts) == 0 {
		return false
	}
	_, ok := v.hosts[Host(rawURL)]
	return ok
}

// Host returns the lower-cased host of a URL accepted by IsValidURL.
func Host(rawURL string) string {
	rest := schemePrefix.ReplaceAllString(strings.TrimSpace(rawURL), "")
	if i := strings.IndexAny(rest, "/:?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// IsValidURL reports whether s looks like a web URL.
func IsValidURL(s string) bool {
	return urlPattern.MatchString(s)
}

// HasScheme reports whether rawURL starts with http:// or https://.
func HasScheme(rawURL string) bool {
	return schemePrefix.MatchString(rawURL)
}

// Normalize strips every whitespace character from tag, including interior ones.
func Normalize(tag string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, tag)
}

// HasReserved reports whether tag contains a reserved path character.
func HasReserved(tag string) bool {
	return strings.ContainsAny(tag, ReservedChars)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
