package xmltree

import (
	"fmt"
	"strconv"
	"strings"
)

type step struct {
	name  string
	index int
	isIdx bool
}

// Path is a compiled lookup path such as
// "CAIS_Account.CAIS_Account_DETAILS[0].CAIS_Holder_Details". An index step
// applies AsSequence first, so [0] also matches a bare node.
type Path struct {
	raw   string
	steps []step
}

// ParsePath compiles a dotted path.
func ParsePath(s string) (Path, error) {
	p := Path{raw: s}
	if s == "" {
		return p, nil
	}
	for _, seg := range strings.Split(s, ".") {
		name, rest := seg, ""
		if open := strings.IndexByte(seg, '['); open >= 0 {
			name, rest = seg[:open], seg[open:]
		}
		if name == "" && rest == "" {
			return Path{}, fmt.Errorf("xmltree: empty segment in %q", s)
		}
		if name != "" {
			p.steps = append(p.steps, step{name: name})
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return Path{}, fmt.Errorf("xmltree: bad segment %q in %q", seg, s)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return Path{}, fmt.Errorf("xmltree: bad index in %q", s)
			}
			p.steps = append(p.steps, step{index: n, isIdx: true})
			rest = rest[end+1:]
		}
	}
	return p, nil
}

// MustPath is ParsePath for package-level path tables.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return p.raw
}

// Resolve walks the path from n. It reports false when a step is missing or
// the node found has the wrong shape for the next step.
func (p Path) Resolve(n Node) (Node, bool) {
	cur := n
	for _, s := range p.steps {
		if s.isIdx {
			seq := AsSequence(cur)
			if s.index >= len(seq) {
				return nil, false
			}
			cur = seq[s.index]
			continue
		}
		el, ok := cur.(*Element)
		if !ok {
			return nil, false
		}
		if cur, ok = el.Get(s.name); !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Lookup parses path and resolves it from n. Malformed paths never match.
func Lookup(n Node, path string) (Node, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return p.Resolve(n)
}
