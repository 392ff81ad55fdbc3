// Package clientid derives analytics client identifiers from network
// addresses. The derived value has the "XXXXXXXXXX.YYYYYYYYYY" shape of a
// measurement client ID and never carries the address itself: it is built by
// overwriting two configured base strings with the address digits, so it can
// only be traced back by someone holding both base strings.
package clientid

import (
	"fmt"
	"strconv"
	"strings"
)

// PartLength is the exact length of each configured base string.
const PartLength = 10

// maxHexDigits bounds segment parsing so oversized input cannot overflow uint64.
const maxHexDigits = 16

var separators = strings.NewReplacer(":", "", ".", "")

// Codec derives pseudo client identifiers. It is immutable after New and safe
// for concurrent use.
type Codec struct {
	first  [PartLength]byte
	second [PartLength]byte
}

// New returns a Codec for the two base strings.
func New(firstPart, secondPart string) (*Codec, error) {
	if len(firstPart) != PartLength {
		return nil, fmt.Errorf("first part must be exactly %d characters, got %d", PartLength, len(firstPart))
	}
	if len(secondPart) != PartLength {
		return nil, fmt.Errorf("second part must be exactly %d characters, got %d", PartLength, len(secondPart))
	}

	c := &Codec{}
	copy(c.first[:], firstPart)
	copy(c.second[:], secondPart)
	return c, nil
}

// Derive returns the pseudo identifier for addr. The first ten address digits
// overwrite the first base string from the left, the next ten overwrite the
// second, and any further digits are dropped.
func (c *Codec) Derive(addr string) string {
	digits := Digits(addr)

	first, second := c.first, c.second
	n := overwrite(&first, digits)
	overwrite(&second, digits[n:])

	var b strings.Builder
	b.Grow(2*PartLength + 1)
	b.Write(first[:])
	b.WriteByte('.')
	b.Write(second[:])
	return b.String()
}

// overwrite copies leading digits into part and reports how many it consumed.
func overwrite(part *[PartLength]byte, digits string) int {
	k := 0
	for k < PartLength && k < len(digits) {
		part[k] = digits[k]
		k++
	}
	return k
}

// Digits normalizes addr into the digit string consumed by Derive. IPv6
// addresses have each colon-separated group rewritten from hex to decimal
// (empty groups of the compressed form become 0), then every ':' and '.' is
// removed.
func Digits(addr string) string {
	if strings.Contains(addr, ":") {
		groups := strings.Split(addr, ":")
		for i, g := range groups {
			groups[i] = strconv.FormatUint(hexPrefix(g), 10)
		}
		addr = strings.Join(groups, ":")
	}
	return separators.Replace(addr)
}

// hexPrefix parses the leading run of hex digits in s. Trailing text such as
// the dotted tail of an IPv4-mapped group or a zone suffix is ignored, and a
// group without any hex digit counts as 0.
func hexPrefix(s string) uint64 {
	end := 0
	for end < len(s) && end < maxHexDigits && isHex(s[end]) {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseUint(s[:end], 16, 64)
	if err != nil {
		return 0
	}
	return v
}

func isHex(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	default:
		return false
	}
}
