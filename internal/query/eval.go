package query

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Node is a value reached by a path, with the location it was reached at.
// Value.Index is the byte offset of the value within the evaluated root.
type Node struct {
	Path  string
	Value gjson.Result
}

// Evaluate walks the frontier of (path, value) pairs one segment at a time,
// starting from the root, then applies the filter. Results keep document
// order. Paths are relative to the root: "a[0].x", or "[1]" for a root array.
func (p *Path) Evaluate(root gjson.Result, matchCase bool) []Node {
	frontier := []Node{{Value: root}}
	for _, seg := range p.Segments {
		var next []Node
		for _, n := range frontier {
			next = seg.apply(n, next)
		}
		if len(next) == 0 {
			return nil
		}
		frontier = next
	}
	if p.Filter == nil {
		return frontier
	}
	out := frontier[:0]
	for _, n := range frontier {
		if p.Filter.Matches(n.Value, matchCase) {
			out = append(out, n)
		}
	}
	return out
}

func (s Segment) apply(n Node, out []Node) []Node {
	switch s.Kind {
	case SegField:
		if !n.Value.IsObject() {
			return out
		}
		n.Value.ForEach(func(key, value gjson.Result) bool {
			if key.Str == s.Name {
				out = append(out, Node{Path: JoinField(n.Path, key.Str), Value: value})
				return false
			}
			return true
		})
	case SegFieldWildcard:
		if !n.Value.IsObject() {
			return out
		}
		n.Value.ForEach(func(key, value gjson.Result) bool {
			out = append(out, Node{Path: JoinField(n.Path, key.Str), Value: value})
			return true
		})
	case SegIndex:
		if !n.Value.IsArray() {
			return out
		}
		i := 0
		n.Value.ForEach(func(_, value gjson.Result) bool {
			if i == s.Index {
				out = append(out, Node{Path: JoinIndex(n.Path, i), Value: value})
				return false
			}
			i++
			return true
		})
	case SegIndexWildcard:
		if !n.Value.IsArray() {
			return out
		}
		i := 0
		n.Value.ForEach(func(_, value gjson.Result) bool {
			out = append(out, Node{Path: JoinIndex(n.Path, i), Value: value})
			i++
			return true
		})
	}
	return out
}

// Matches reports whether v equals the filter literal. Strings compare
// case-insensitively unless matchCase is set; everything else compares
// structurally.
func (f *Filter) Matches(v gjson.Result, matchCase bool) bool {
	if want, ok := f.Value.(string); ok {
		if v.Type != gjson.String {
			return false
		}
		if matchCase {
			return v.Str == want
		}
		return strings.EqualFold(v.Str, want)
	}
	return reflect.DeepEqual(v.Value(), f.Value)
}

// JoinField appends an object key to a path, bracket-quoting keys that are
// not plain identifiers.
func JoinField(prefix, name string) string {
	if !isPlainName(name) {
		return prefix + "[" + strconv.Quote(name) + "]"
	}
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// JoinIndex appends an array index to a path.
func JoinIndex(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}

// Absolute turns a root-relative path into its '$' form.
func Absolute(rel string) string {
	if rel == "" || strings.HasPrefix(rel, "[") {
		return "$" + rel
	}
	return "$." + rel
}
