package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/AnTengye/creditreport/pkg/xmltree"
)

// Transform converts a located node into a field value. It reports false
// when the node cannot produce a value, which moves resolution on to the
// next candidate.
type Transform[T any] func(xmltree.Node) (T, bool)

// Candidate is one place a field may be found
type Candidate[T any] struct {
	Path      xmltree.Path
	Transform Transform[T]
}

// Field builds a candidate from a dotted path
func Field[T any](path string, fn Transform[T]) Candidate[T] {
	return Candidate[T]{Path: xmltree.MustPath(path), Transform: fn}
}

// Resolve returns the value of the first candidate that both resolves and
// transforms, or def.
func Resolve[T any](root xmltree.Node, def T, candidates ...Candidate[T]) T {
	for _, c := range candidates {
		n, ok := c.Path.Resolve(root)
		if !ok {
			continue
		}
		if v, ok := c.Transform(n); ok {
			return v
		}
	}
	return def
}

// AnyText accepts any text, including empty
func AnyText(n xmltree.Node) (string, bool) {
	return xmltree.Text(n)
}

// NonEmptyText accepts text that is not blank and returns it trimmed
func NonEmptyText(n xmltree.Node) (string, bool) {
	s, ok := xmltree.Text(n)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

// LenientInt parses the leading integer of the text, so "712 pts" gives 712
func LenientInt(n xmltree.Node) (int, bool) {
	s, ok := xmltree.Text(n)
	if !ok {
		return 0, false
	}
	return parseLenientInt(s)
}

// LenientFloat parses the leading decimal of the text
func LenientFloat(n xmltree.Node) (float64, bool) {
	s, ok := xmltree.Text(n)
	if !ok {
		return 0, false
	}
	return parseLenientFloat(s)
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
)

func parseLenientInt(s string) (int, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(m, 10, strconv.IntSize)
	if err != nil {
		// Out-of-range digits clamp to the int bounds
		if errors.Is(err, strconv.ErrRange) {
			return int(v), true
		}
		return 0, false
	}
	return int(v), true
}

func parseLenientFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
