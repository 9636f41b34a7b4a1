package match

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const ellipsis = "…"

// Preview is a short single-line excerpt around a match.
type Preview struct {
	Before string
	Match  string
	After  string
}

func (p Preview) String() string { return p.Before + p.Match + p.After }

// BuildPreview excerpts raw around r with up to context bytes on each side.
// Whitespace runs collapse to one space and a cut edge is marked with an
// ellipsis. Cuts never split a UTF-8 sequence.
func BuildPreview(raw []byte, r ByteRange, context int) Preview {
	start, end := int(r.Start), int(r.End)
	if len(raw) == 0 || start >= end || end > len(raw) {
		return Preview{}
	}

	from := start - context
	if from < 0 {
		from = 0
	}
	for from > 0 && from < start && !utf8.RuneStart(raw[from]) {
		from++
	}
	to := end + context
	if to > len(raw) {
		to = len(raw)
	}
	for to < len(raw) && to > end && !utf8.RuneStart(raw[to]) {
		to--
	}

	p := Preview{
		Before: strings.TrimLeftFunc(collapse(raw[from:start]), unicode.IsSpace),
		Match:  collapse(raw[start:end]),
		After:  strings.TrimRightFunc(collapse(raw[end:to]), unicode.IsSpace),
	}
	if from > 0 {
		p.Before = ellipsis + p.Before
	}
	if to < len(raw) {
		p.After += ellipsis
	}
	return p
}

// collapse replaces each whitespace run with one space and invalid UTF-8 with
// the replacement character.
func collapse(b []byte) string {
	s := strings.ToValidUTF8(string(b), "�")
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				sb.WriteByte(' ')
				space = true
			}
			continue
		}
		sb.WriteRune(r)
		space = false
	}
	return sb.String()
}
