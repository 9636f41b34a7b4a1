package index

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// Shape is the top-level layout of an indexed file.
type Shape int

const (
	ShapeAuto Shape = iota
	ShapeNDJSON
	ShapeArray
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeNDJSON:
		return "ndjson"
	case ShapeArray:
		return "array"
	case ShapeSingle:
		return "single"
	default:
		return "auto"
	}
}

// ParseShape maps a config or flag value to a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ShapeAuto, nil
	case "ndjson", "jsonl":
		return ShapeNDJSON, nil
	case "array":
		return ShapeArray, nil
	case "single", "object":
		return ShapeSingle, nil
	}
	return ShapeAuto, fmt.Errorf("index: unknown shape %q", s)
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Detect guesses the shape from the leading bytes of a file. complete reports
// whether prefix holds the entire file, which lets a final unterminated line
// count toward NDJSON detection.
//
// Two leading non-empty lines that each parse as JSON make NDJSON. Otherwise a
// leading '[' makes an array and anything else a single value. An empty or
// blank file is NDJSON with no records.
func Detect(prefix []byte, complete bool) Shape {
	shape, _ := detect(bufio.NewReader(bytes.NewReader(prefix)), complete, nil)
	return shape
}

// detect reads whole lines from the start of br, however long they are, until
// the shape is decided. Bytes consumed are copied to record when it is non-nil.
func detect(br *bufio.Reader, complete bool, record io.Writer) (Shape, error) {
	emit := func(p []byte) {
		if record != nil {
			record.Write(p)
		}
	}

	if head, _ := br.Peek(len(bom)); bytes.Equal(head, bom) {
		emit(head)
		br.Discard(len(bom))
	}

	var first byte
	valid := 0
	for valid < 2 {
		var c lineCheck
		terminated := false
		for {
			part, err := br.ReadSlice('\n')
			emit(part)
			c.write(part)
			if err == nil {
				terminated = true
				break
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return ShapeAuto, fmt.Errorf("index: sniff: %w", err)
		}
		if first == 0 {
			first = c.first
		}
		if c.first == 0 {
			if !terminated {
				break
			}
			continue
		}
		if (!terminated && !complete) || !c.valid() {
			break
		}
		valid++
		if !terminated {
			break
		}
	}

	switch {
	case valid >= 2, first == 0:
		return ShapeNDJSON, nil
	case first == '[':
		return ShapeArray, nil
	}
	return ShapeSingle, nil
}

// lineCheck follows the bytes of one line and decides whether they hold
// exactly one JSON value. Lines up to sniffLimit are validated in full; longer
// ones are judged by string and bracket balance alone.
type lineCheck struct {
	buf      []byte
	long     bool
	first    byte
	depth    int
	inString bool
	escaped  bool
	closed   bool
	bad      bool
}

func (c *lineCheck) write(p []byte) {
	if !c.long {
		if len(c.buf)+len(p) <= sniffLimit {
			c.buf = append(c.buf, p...)
		} else {
			c.long = true
			c.buf = nil
		}
	}
	for _, b := range p {
		if c.bad {
			return
		}
		if c.first == 0 {
			if isSpace(b) {
				continue
			}
			c.first = b
		}
		switch {
		case c.inString:
			switch {
			case c.escaped:
				c.escaped = false
			case b == '\\':
				c.escaped = true
			case b == '"':
				c.inString = false
				if c.depth == 0 {
					c.closed = true
				}
			}
		case c.closed:
			if !isSpace(b) {
				c.bad = true
			}
		case b == '"':
			c.inString = true
		case b == '{' || b == '[':
			c.depth++
		case b == '}' || b == ']':
			c.depth--
			if c.depth < 0 {
				c.bad = true
			} else if c.depth == 0 {
				c.closed = true
			}
		}
	}
}

func (c *lineCheck) valid() bool {
	if !c.long {
		return gjson.ValidBytes(bytes.TrimSpace(c.buf))
	}
	switch c.first {
	case '{', '[', '"':
		return c.closed && !c.bad
	}
	return false
}
