package xmltree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON writes the element as an object with keys in document order.
func (e *Element) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes the tree as plain strings, objects and arrays. An empty
// tree is written as null.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.Root)
}

// UnmarshalJSON reads a tree previously written by MarshalJSON. Numbers and
// booleans become Scalars holding their literal text.
func (t *Tree) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		t.Root = nil
		return nil
	}
	root, err := readNode(dec, tok)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func readNode(dec *json.Decoder, tok json.Token) (Node, error) {
	switch v := tok.(type) {
	case nil:
		return Scalar(""), nil
	case string:
		return Scalar(v), nil
	case json.Number:
		return Scalar(v.String()), nil
	case bool:
		if v {
			return Scalar("true"), nil
		}
		return Scalar("false"), nil
	case json.Delim:
		switch v {
		case '{':
			el := NewElement()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("xmltree: unexpected object key %v", kt)
				}
				vt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := readNode(dec, vt)
				if err != nil {
					return nil, err
				}
				el.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return el, nil
		case '[':
			seq := Sequence{}
			for dec.More() {
				vt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := readNode(dec, vt)
				if err != nil {
					return nil, err
				}
				seq = append(seq, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		}
	}
	return nil, errors.New("xmltree: unexpected JSON token")
}
