package xmltree

import "testing"

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		steps   int
		wantErr bool
	}{
		{"", 0, false},
		{"A", 1, false},
		{"A.B.C", 3, false},
		{"A.B[0].C", 4, false},
		{"A[1][0]", 3, false},
		{"A..B", 0, true},
		{"A[x]", 0, true},
		{"A[0", 0, true},
		{"A[0]B", 0, true},
		{"A[-1]", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := ParsePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(p.steps) != tt.steps {
				t.Errorf("Expected %d steps, got %d", tt.steps, len(p.steps))
			}
			if p.String() != tt.path {
				t.Errorf("Expected String() %q, got %q", tt.path, p.String())
			}
		})
	}
}

func TestPathResolve(t *testing.T) {
	doc := `<r>
		<List><Item><V>1</V></Item><Item><V>2</V></Item></List>
		<Single><Item><V>solo</V></Item></Single>
		<Leaf>x</Leaf>
	</r>`
	tree, err := Decode([]byte(doc), DefaultOptions())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	tests := []struct {
		path     string
		expected string
		found    bool
	}{
		{"List.Item[0].V", "1", true},
		{"List.Item[1].V", "2", true},
		{"List.Item[2].V", "", false},
		{"Single.Item[0].V", "solo", true},
		{"Single.Item[1].V", "", false},
		{"List.Item.V", "", false},
		{"Leaf.Child", "", false},
		{"Missing.Path", "", false},
		{"Leaf", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, ok := tree.Lookup(tt.path)
			if ok != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, ok)
			}
			if !ok {
				return
			}
			if text, _ := Text(n); text != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, text)
			}
		})
	}
}

func TestAsSequence(t *testing.T) {
	el := NewElement()

	tests := []struct {
		name     string
		node     Node
		expected int
	}{
		{"nil", nil, 0},
		{"scalar", Scalar("a"), 1},
		{"element", el, 1},
		{"sequence", Sequence{Scalar("a"), Scalar("b")}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(AsSequence(tt.node)); got != tt.expected {
				t.Errorf("Expected length %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestElementAdd(t *testing.T) {
	el := NewElement()
	el.Add("a", Scalar("1"))
	if _, ok := el.fields["a"].(Scalar); !ok {
		t.Fatalf("Expected bare scalar after first add, got %T", el.fields["a"])
	}

	el.Add("a", Scalar("2"))
	el.Add("a", Scalar("3"))
	seq, ok := el.fields["a"].(Sequence)
	if !ok {
		t.Fatalf("Expected Sequence after repeat, got %T", el.fields["a"])
	}
	if len(seq) != 3 || seq[2] != Scalar("3") {
		t.Errorf("Unexpected sequence %v", seq)
	}
	if el.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", el.Len())
	}
}

func TestKeysSorted(t *testing.T) {
	el := NewElement()
	el.Set("b", Scalar(""))
	el.Set("a", Scalar(""))

	if keys := Keys(el, true); keys[0] != "a" {
		t.Errorf("Expected sorted keys, got %v", keys)
	}
	if keys := Keys(el, false); keys[0] != "b" {
		t.Errorf("Expected insertion order, got %v", keys)
	}
	if Keys(Scalar("x"), false) != nil {
		t.Error("Expected nil keys for scalar")
	}
}
