package match

import "fmt"

// Target says what a fragment points into.
type Target int

const (
	// TargetRawRecord is a span of the record's raw bytes.
	TargetRawRecord Target = iota
	// TargetJSONField is a span attributed to a key or value in the parsed record.
	TargetJSONField
)

func (t Target) String() string {
	if t == TargetJSONField {
		return "json_field"
	}
	return "raw_record"
}

// Component narrows a JSON field fragment.
type Component int

const (
	ComponentNone Component = iota
	ComponentKey
	ComponentValue
	// ComponentEntireRow highlights a whole record or composite value.
	ComponentEntireRow
)

func (c Component) String() string {
	switch c {
	case ComponentKey:
		return "key"
	case ComponentValue:
		return "value"
	case ComponentEntireRow:
		return "entire_row"
	default:
		return "none"
	}
}

// ByteRange is a half-open range of offsets into a record's raw bytes.
type ByteRange struct {
	Start uint32
	End   uint32
}

func (r ByteRange) Len() int       { return int(r.End) - int(r.Start) }
func (r ByteRange) Empty() bool     { return r.End <= r.Start }
func (r ByteRange) String() string { return fmt.Sprintf("%d..%d", r.Start, r.End) }

// Fragment is one highlightable span of a matched record. It carries no
// rendering information.
type Fragment struct {
	Target    Target
	Component Component
	// Path locates a field fragment, e.g. "0.user.name" or "a[1].x".
	Path        string
	MatchedText string
	Range       ByteRange
	// CapApplied is set on every fragment of a record that had more matches
	// than the per-record limit; scanning of that record stopped there.
	CapApplied bool
}

// collector enforces the per-record fragment limit.
type collector struct {
	frags   []Fragment
	limit   int
	dropped bool
}

func (c *collector) full() bool { return len(c.frags) >= c.limit }

// add appends f. Once the limit has been reached f is dropped and add
// returns false.
func (c *collector) add(f Fragment) bool {
	if c.full() {
		c.dropped = true
		return false
	}
	c.frags = append(c.frags, f)
	return true
}

func (c *collector) result() []Fragment {
	if c.dropped {
		for i := range c.frags {
			c.frags[i].CapApplied = true
		}
	}
	return c.frags
}
