package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Mode selects how a raw generation response is split into sections.
type Mode int

const (
	// LineKey reads "KEY: value" lines and ignores everything else.
	LineKey Mode = iota
	// BlockMarker reads "### name ###" delimited blocks.
	BlockMarker
	// Heading reads "**ROOT CAUSE:**" or "## Root cause" style headings, and
	// bare "ROOT CAUSE:" lines when the caller declares that heading.
	Heading
)

func (m Mode) String() string {
	switch m {
	case LineKey:
		return "line-key"
	case BlockMarker:
		return "block-marker"
	case Heading:
		return "heading"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// UntaggedKey holds text that belongs to no recognized key.
const UntaggedKey = "untagged"

var (
	lineKeyRe     = regexp.MustCompile(`^\s*([A-Za-z_ ]+):\s*(.*)$`)
	blockMarkerRe = regexp.MustCompile(`^\s*#{3,}\s*(.*?)\s*#*\s*$`)
	upperKeyRe    = regexp.MustCompile(`^([A-Z][A-Z0-9 _/&-]{2,}):\s*(.*)$`)
)

// Section is one parsed key and its text.
type Section struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Parsed is an ordered key/value view of a response. Each key appears once.
type Parsed struct {
	sections []Section
}

// Parse splits raw according to mode. It never fails: when no structure is
// recognized the whole trimmed input is kept under UntaggedKey, and an empty
// input yields an empty result.
//
// headings only matter in Heading mode: a bare upper-case "KEY:" line starts
// a section only when KEY is one of them, so quoted log lines such as
// "ERROR: ..." stay in the body.
func Parse(raw string, mode Mode, headings ...string) Parsed {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.TrimSpace(raw) == "" {
		return Parsed{}
	}

	var p Parsed
	switch mode {
	case BlockMarker:
		p = parseSections(raw, blockMarker)
	case Heading:
		p = parseSections(raw, headingSplitter(headings))
	default:
		p = parseLineKeys(raw)
	}

	if !p.Structured() {
		return Parsed{sections: []Section{{Key: UntaggedKey, Value: strings.TrimSpace(raw)}}}
	}
	return p
}

// NormalizeKey lower-cases k, trims it and turns inner whitespace runs into
// a single underscore.
func NormalizeKey(k string) string {
	return strings.ToLower(strings.Join(strings.Fields(k), "_"))
}

func parseLineKeys(raw string) Parsed {
	var p Parsed
	for _, line := range strings.Split(raw, "\n") {
		m := lineKeyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := NormalizeKey(m[1])
		if key == "" {
			continue
		}
		p.add(key, strings.TrimSpace(m[2]))
	}
	return p
}

// splitter recognizes a section start. rest is inline text following the
// heading on the same line.
type splitter func(line string) (key, rest string, ok bool)

func parseSections(raw string, start splitter) Parsed {
	var (
		p       Parsed
		current = UntaggedKey
		body    []string
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		// a blank preamble is dropped, a blank named section is kept
		if current != UntaggedKey || text != "" {
			p.add(current, text)
		}
		body = body[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		key, rest, ok := start(line)
		if !ok {
			body = append(body, line)
			continue
		}
		flush()
		current = key
		if rest != "" {
			body = append(body, rest)
		}
	}
	flush()
	return p
}

func blockMarker(line string) (string, string, bool) {
	m := blockMarkerRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name := strings.ToLower(strings.TrimSpace(m[1]))
	if name == "" {
		return "", "", false
	}
	return name, "", true
}

func headingSplitter(headings []string) splitter {
	declared := make(map[string]bool, len(headings))
	for _, h := range headings {
		declared[NormalizeKey(h)] = true
	}
	return func(line string) (string, string, bool) {
		return heading(line, declared)
	}
}

func heading(line string, declared map[string]bool) (string, string, bool) {
	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "#"):
		name := strings.TrimLeft(t, "#")
		if name == t || !strings.HasPrefix(name, " ") {
			return "", "", false
		}
		name = strings.Trim(name, " #*:")
		return headingKey(name, "")
	case strings.HasPrefix(t, "**"):
		end := strings.Index(t[2:], "**")
		if end < 0 {
			return "", "", false
		}
		inner := strings.TrimSpace(t[2 : 2+end])
		rest := strings.TrimSpace(t[2+end+2:])
		switch {
		case strings.HasSuffix(inner, ":"):
			return headingKey(strings.TrimSuffix(inner, ":"), rest)
		case strings.HasPrefix(rest, ":"):
			return headingKey(inner, strings.TrimSpace(rest[1:]))
		case rest == "":
			return headingKey(inner, "")
		}
		return "", "", false
	default:
		m := upperKeyRe.FindStringSubmatch(t)
		if m == nil || !declared[NormalizeKey(m[1])] {
			return "", "", false
		}
		return headingKey(m[1], strings.TrimSpace(m[2]))
	}
}

func headingKey(name, rest string) (string, string, bool) {
	key := NormalizeKey(strings.Trim(name, " *:"))
	if key == "" || !strings.ContainsFunc(key, unicode.IsLetter) {
		return "", "", false
	}
	return key, rest, true
}

// first occurrence wins
func (p *Parsed) add(key, value string) {
	if p.Has(key) {
		return
	}
	p.sections = append(p.sections, Section{Key: key, Value: value})
}

// FromSections builds a Parsed from already keyed sections, applying the
// same first-wins rule as Parse.
func FromSections(sections ...Section) Parsed {
	var p Parsed
	for _, s := range sections {
		p.add(s.Key, s.Value)
	}
	return p
}

// Get returns the value stored under key.
func (p Parsed) Get(key string) (string, bool) {
	for _, s := range p.sections {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Value returns the value under key or "".
func (p Parsed) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Has reports whether key was produced.
func (p Parsed) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Keys returns keys in the order they first appeared.
func (p Parsed) Keys() []string {
	keys := make([]string, len(p.sections))
	for i, s := range p.sections {
		keys[i] = s.Key
	}
	return keys
}

// Sections returns a copy of the ordered sections.
func (p Parsed) Sections() []Section {
	out := make([]Section, len(p.sections))
	copy(out, p.sections)
	return out
}

// Len returns the number of keys.
func (p Parsed) Len() int { return len(p.sections) }

// Structured reports whether any key other than UntaggedKey was recognized.
func (p Parsed) Structured() bool {
	for _, s := range p.sections {
		if s.Key != UntaggedKey {
			return true
		}
	}
	return false
}

// MarshalJSON writes the sections as a JSON object in parse order.
func (p Parsed) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range p.sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of string values, keeping key order.
func (p *Parsed) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Parsed{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sections: expected object, got %v", tok)
	}

	var out Parsed
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("sections: expected string key, got %v", kt)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("sections: value of %q: %w", key, err)
		}
		out.add(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
