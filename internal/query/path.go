package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// SegmentKind identifies one step of a path.
type SegmentKind int

const (
	SegField SegmentKind = iota
	SegFieldWildcard
	SegIndex
	SegIndexWildcard
)

type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
}

func (s Segment) String() string {
	switch s.Kind {
	case SegFieldWildcard:
		return ".*"
	case SegIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case SegIndexWildcard:
		return "[*]"
	}
	if isPlainName(s.Name) {
		return "." + s.Name
	}
	return "[" + strconv.Quote(s.Name) + "]"
}

// Filter is a trailing equality test.
type Filter struct {
	// Raw is the literal as written.
	Raw   string
	Value any
}

// Path is a parsed structured expression.
type Path struct {
	Segments []Segment
	Filter   *Filter
}

func (p *Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.Segments {
		b.WriteString(s.String())
	}
	if p.Filter != nil {
		b.WriteString(" = ")
		b.WriteString(p.Filter.Raw)
	}
	return b.String()
}

// ParsePath parses `$.a[0]["b c"].*[*] = literal`. The leading '$' is optional.
func ParsePath(input string) (*Path, error) {
	expr, lit, litPos, hasFilter := splitFilter(input)

	p := &pathParser{input: input, src: expr}
	p.skipSpace()
	if p.pos >= len(p.src) && !hasFilter {
		return nil, p.fail("empty path")
	}
	rooted := p.peek() == '$'
	if rooted {
		p.pos++
	}

	path := &Path{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			break
		}
		seg, err := p.segment(!rooted && len(path.Segments) == 0)
		if err != nil {
			return nil, err
		}
		path.Segments = append(path.Segments, seg)
	}

	if hasFilter {
		f, err := parseFilter(input, lit, litPos)
		if err != nil {
			return nil, err
		}
		path.Filter = f
	}
	return path, nil
}

// splitFilter cuts input at the first '=' (or "==") outside quotes.
func splitFilter(input string) (expr, lit string, litPos int, ok bool) {
	var quote byte
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '=':
			j := i + 1
			if j < len(input) && input[j] == '=' {
				j++
			}
			return input[:i], input[j:], j, true
		}
	}
	return input, "", 0, false
}

func parseFilter(input, lit string, pos int) (*Filter, error) {
	trimmed := strings.TrimSpace(lit)
	pos += strings.Index(lit, trimmed)
	fail := func(reason string) error {
		return &SyntaxError{Input: input, Pos: pos, Reason: reason}
	}
	if trimmed == "" {
		return nil, fail("missing filter value")
	}
	if gjson.Valid(trimmed) {
		return &Filter{Raw: trimmed, Value: gjson.Parse(trimmed).Value()}, nil
	}
	if len(trimmed) >= 2 && trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'' {
		s, ok := unquoteSingle(trimmed[1 : len(trimmed)-1])
		if !ok {
			return nil, fail("bad escape in quoted filter value")
		}
		return &Filter{Raw: trimmed, Value: s}, nil
	}
	return nil, fail("filter value is not a JSON literal or quoted string")
}

func unquoteSingle(s string) (string, bool) {
	if !strings.ContainsRune(s, '\\') {
		return s, true
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", false
		}
		b.WriteByte(s[i])
	}
	return b.String(), true
}

type pathParser struct {
	input string
	src   string
	pos   int
}

func (p *pathParser) fail(reason string) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Reason: reason}
}

func (p *pathParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *pathParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *pathParser) segment(first bool) (Segment, error) {
	switch p.peek() {
	case '.':
		p.pos++
		if p.peek() == '*' {
			p.pos++
			return Segment{Kind: SegFieldWildcard}, nil
		}
		name := p.name()
		if name == "" {
			return Segment{}, p.fail("expected field name after '.'")
		}
		return Segment{Kind: SegField, Name: name}, nil
	case '[':
		return p.bracket()
	}
	// A bare leading name without '$', as in "a[0].x", reads as ".a".
	if first {
		if name := p.name(); name != "" {
			return Segment{Kind: SegField, Name: name}, nil
		}
	}
	return Segment{}, p.fail("unexpected character")
}

func (p *pathParser) name() string {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			break
		}
		p.pos += size
	}
	return p.src[start:p.pos]
}

func (p *pathParser) bracket() (Segment, error) {
	p.pos++
	p.skipSpace()

	var seg Segment
	switch c := p.peek(); {
	case c == '*':
		p.pos++
		seg = Segment{Kind: SegIndexWildcard}
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Segment{}, p.fail("array index out of range")
		}
		seg = Segment{Kind: SegIndex, Index: n}
	case c == '\'' || c == '"':
		name, err := p.quoted(c)
		if err != nil {
			return Segment{}, err
		}
		seg = Segment{Kind: SegField, Name: name}
	case c == 0:
		return Segment{}, p.fail("unterminated bracket")
	default:
		return Segment{}, p.fail("expected index, '*' or quoted name in brackets")
	}

	p.skipSpace()
	if p.peek() != ']' {
		if p.pos >= len(p.src) {
			return Segment{}, p.fail("unterminated bracket")
		}
		return Segment{}, p.fail("expected ']'")
	}
	p.pos++
	return seg, nil
}

func (p *pathParser) quoted(quote byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	p.pos = start
	return "", p.fail("unterminated quoted name")
}

func isPlainName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
