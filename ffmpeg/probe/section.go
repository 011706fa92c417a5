package probe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFormat is returned if the output of ffprobe is malformed.
var ErrFormat = errors.New("malformed probe output")

// Section is one bracketed block of the ffprobe output, e.g.
//
//	[STREAM]
//	index=0
//	codec_type=audio
//	[/STREAM]
//
// Sections nested in a section, e.g. SIDE_DATA in STREAM, are kept
// in Sections.
type Section struct {
	Name     string
	Fields   map[string]string
	Sections []Section
}

// Get returns the value of a field and whether it is set to a value. A
// field with the value "N/A" is not set.
func (s Section) Get(key string) (string, bool) {
	value, ok := s.Fields[key]
	if !ok || value == "N/A" {
		return "", false
	}

	return value, true
}

// ParseSections reads all top-level sections from r. Blank lines are skipped.
func ParseSections(r io.Reader) ([]Section, error) {
	sections := []Section{}
	stack := []*Section{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	nline := 0

	for scanner.Scan() {
		nline++

		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		if name, ok := closingTag(line); ok {
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: line %d: closing tag [/%s] outside of a section", ErrFormat, nline, name)
			}

			top := stack[len(stack)-1]
			if top.Name != name {
				return nil, fmt.Errorf("%w: line %d: closing tag [/%s] in section %s", ErrFormat, nline, name, top.Name)
			}

			stack = stack[:len(stack)-1]

			if len(stack) == 0 {
				sections = append(sections, *top)
			} else {
				parent := stack[len(stack)-1]
				parent.Sections = append(parent.Sections, *top)
			}

			continue
		}

		if name, ok := openingTag(line); ok {
			stack = append(stack, &Section{
				Name:   name,
				Fields: map[string]string{},
			})

			continue
		}

		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: line %d: must start with a tag: %q", ErrFormat, nline, line)
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: line %d: missing '=': %q", ErrFormat, nline, line)
		}

		stack[len(stack)-1].Fields[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: section %s is not closed", ErrFormat, stack[len(stack)-1].Name)
	}

	return sections, nil
}

func openingTag(line string) (string, bool) {
	if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' || line[1] == '/' {
		return "", false
	}

	return line[1 : len(line)-1], true
}

func closingTag(line string) (string, bool) {
	if !strings.HasPrefix(line, "[/") || line[len(line)-1] != ']' || len(line) < 4 {
		return "", false
	}

	return line[2 : len(line)-1], true
}
