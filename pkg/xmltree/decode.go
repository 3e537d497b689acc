package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"
)

const (
	// TextKey holds element text that sits next to attributes or children.
	TextKey = "_"
	// AttrKey holds attributes when they are not merged into the element.
	AttrKey = "$"
)

// Options controls how a document is mapped onto the tree. The zero value
// keeps attributes apart, keeps whitespace and drops the root element; use
// DefaultOptions for the settings report processing relies on.
type Options struct {
	// MergeAttributes stores attributes next to child elements instead of
	// under AttrKey.
	MergeAttributes bool
	// Trim strips leading and trailing whitespace from text.
	Trim bool
	// Normalize collapses inner whitespace runs to a single space.
	Normalize bool
	// ExplicitRoot keeps the document element as the single top-level key.
	ExplicitRoot bool
}

// DefaultOptions merges attributes, trims and normalizes text and drops the
// document element so its children become the top-level keys.
func DefaultOptions() Options {
	return Options{
		MergeAttributes: true,
		Trim:            true,
		Normalize:       true,
	}
}

// DecodeError reports a document that is not well-formed XML.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to parse XML: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Tree is a decoded document.
type Tree struct {
	Root Node
}

// Lookup resolves a dotted path against the tree root.
func (t Tree) Lookup(path string) (Node, bool) {
	return Lookup(t.Root, path)
}

// Keys returns the top-level keys in document order.
func (t Tree) Keys() []string {
	return Keys(t.Root, false)
}

type frame struct {
	name string
	el   *Element
	text strings.Builder
}

// Decode parses data into a Tree.
func Decode(data []byte, opts Options) (Tree, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	var (
		stack []*frame
		root  Node
		name  string
		done  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Tree{}, &DecodeError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if done {
				return Tree{}, &DecodeError{Err: fmt.Errorf("unexpected element <%s> after document end", t.Name.Local)}
			}
			f := &frame{name: t.Name.Local, el: NewElement()}
			addAttributes(f.el, t.Attr, opts)
			stack = append(stack, f)

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return Tree{}, &DecodeError{Err: errors.New("text data outside of root element")}
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)

		case xml.EndElement:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := f.finish(opts)
			if len(stack) == 0 {
				root, name, done = n, f.name, true
				continue
			}
			stack[len(stack)-1].el.Add(f.name, n)
		}
	}

	if !done {
		return Tree{}, &DecodeError{Err: errors.New("document has no root element")}
	}
	if opts.ExplicitRoot {
		wrapper := NewElement()
		wrapper.Set(name, root)
		return Tree{Root: wrapper}, nil
	}
	return Tree{Root: root}, nil
}

// addAttributes stores attribute values as written; trim and normalize only
// apply to element text.
func addAttributes(el *Element, attrs []xml.Attr, opts Options) {
	var target *Element
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		if opts.MergeAttributes {
			el.Add(a.Name.Local, Scalar(a.Value))
			continue
		}
		if target == nil {
			target = NewElement()
			el.Set(AttrKey, target)
		}
		target.Set(a.Name.Local, Scalar(a.Value))
	}
}

func (f *frame) finish(opts Options) Node {
	text := cleanText(f.text.String(), opts)
	if f.el.Len() == 0 {
		return Scalar(text)
	}
	if text != "" {
		f.el.Set(TextKey, Scalar(text))
	}
	return f.el
}

// cleanText applies the trim and normalize options. Whitespace-only text is
// always dropped.
func cleanText(s string, opts Options) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	if opts.Normalize {
		s = collapseSpace(s)
	}
	return s
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
