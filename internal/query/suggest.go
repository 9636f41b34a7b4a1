package query

import (
	"github.com/sahilm/fuzzy"
	"github.com/tidwall/gjson"
)

// Paths lists the '$' form of every key and element path below root in
// document order. limit bounds the result; zero means no bound.
func Paths(root gjson.Result, limit int) []string {
	var out []string
	var walk func(prefix string, v gjson.Result) bool
	walk = func(prefix string, v gjson.Result) bool {
		isObj := v.IsObject()
		if !isObj && !v.IsArray() {
			return true
		}
		i := 0
		more := true
		v.ForEach(func(key, value gjson.Result) bool {
			var p string
			if isObj {
				p = JoinField(prefix, key.Str)
			} else {
				p = JoinIndex(prefix, i)
				i++
			}
			out = append(out, Absolute(p))
			if limit > 0 && len(out) >= limit {
				more = false
				return false
			}
			more = walk(p, value)
			return more
		})
		return more
	}
	walk("", root)
	return out
}

// pathSource implements fuzzy.Source over collected paths
type pathSource []string

func (s pathSource) String(i int) string { return s[i] }
func (s pathSource) Len() int            { return len(s) }

// maxSuggestCandidates bounds how many paths of a huge record are ranked.
const maxSuggestCandidates = 10000

// SuggestPaths ranks the paths of root by fuzzy similarity to input. An empty
// input returns paths in document order.
func SuggestPaths(root gjson.Result, input string, limit int) []string {
	all := Paths(root, maxSuggestCandidates)
	if input == "" || input == "$" {
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		return all
	}

	matches := fuzzy.FindFrom(input, pathSource(all))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
