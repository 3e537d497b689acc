// Package xmltree decodes arbitrary XML documents into a generic tree of
// elements, text and repeated siblings.
//
// The shape follows what most credit bureau integrations expect from an
// "explicitArray off" XML-to-object conversion: an element that appears once
// under its parent is stored as a bare node, an element that appears more than
// once is stored as a Sequence in document order. Callers never know up front
// which of the two they will get, so every lookup goes through AsSequence or a
// Path with an index step.
package xmltree

import "sort"

// Node is one of Scalar, *Element or Sequence.
type Node interface {
	isNode()
}

// Scalar is the text content of a leaf element or the value of an attribute.
type Scalar string

// Sequence holds the nodes of a repeated sibling element in document order.
type Sequence []Node

// Element maps child element and attribute names to their nodes. Keys keep
// their first-seen order.
type Element struct {
	keys   []string
	fields map[string]Node
}

func (Scalar) isNode()   {}
func (Sequence) isNode() {}
func (*Element) isNode() {}

// NewElement returns an empty element.
func NewElement() *Element {
	return &Element{fields: make(map[string]Node)}
}

// Get returns the node stored under key.
func (e *Element) Get(key string) (Node, bool) {
	if e == nil {
		return nil, false
	}
	n, ok := e.fields[key]
	return n, ok
}

// Keys returns the element's keys in insertion order.
func (e *Element) Keys() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Len returns the number of distinct keys.
func (e *Element) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// Set replaces the node stored under key.
func (e *Element) Set(key string, n Node) {
	if _, ok := e.fields[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.fields[key] = n
}

// Add stores n under key, turning the entry into a Sequence when the key is
// already present.
func (e *Element) Add(key string, n Node) {
	prev, ok := e.fields[key]
	if !ok {
		e.Set(key, n)
		return
	}
	if seq, isSeq := prev.(Sequence); isSeq {
		e.fields[key] = append(seq, n)
		return
	}
	e.fields[key] = Sequence{prev, n}
}

// AsSequence normalizes a node that may or may not be repeated. A nil node
// gives an empty sequence, a bare node gives a one-element sequence.
func AsSequence(n Node) Sequence {
	switch v := n.(type) {
	case nil:
		return Sequence{}
	case Sequence:
		return v
	default:
		return Sequence{v}
	}
}

// Text returns the text carried by n. Elements only carry text when they mix
// it with attributes or children, in which case it is stored under TextKey.
func Text(n Node) (string, bool) {
	switch v := n.(type) {
	case Scalar:
		return string(v), true
	case *Element:
		if t, ok := v.Get(TextKey); ok {
			if s, ok := t.(Scalar); ok {
				return string(s), true
			}
		}
	}
	return "", false
}

// Keys returns the keys of n when it is an element, sorted when sorted is set.
func Keys(n Node, sorted bool) []string {
	el, ok := n.(*Element)
	if !ok {
		return nil
	}
	keys := el.Keys()
	if sorted {
		sort.Strings(keys)
	}
	return keys
}
