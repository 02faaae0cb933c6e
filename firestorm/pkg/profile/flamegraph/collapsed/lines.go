package collapsed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Separator joins frame names inside a path. The format has no escaping,
// so frame names must never contain it (see Sanitize).
const Separator = ";"

// Line is one collapsed stack: a separator-joined path and its weight in nanoseconds.
type Line struct {
	Path   string
	Weight uint64
}

func (l Line) Stack() []string {
	return strings.Split(l.Path, Separator)
}

func (l Line) String() string {
	return l.Path + " " + strconv.FormatUint(l.Weight, 10)
}

////////////////////////////////////////////////////////////////////////////////

func isReserved(r rune) bool {
	return r == ';' || unicode.IsSpace(r)
}

// Sanitize makes tag usable as a single frame name: separators are dropped
// and whitespace is replaced with underscores. Sanitize is idempotent.
func Sanitize(tag string) string {
	if strings.IndexFunc(tag, isReserved) == -1 {
		return tag
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ';':
			return -1
		case unicode.IsSpace(r):
			return '_'
		default:
			return r
		}
	}, tag)
}

// Join appends an already sanitized frame name to parent.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}

////////////////////////////////////////////////////////////////////////////////

func Decode(r io.Reader) ([]Line, error) {
	res := make([]Line, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx <= 0 {
			return nil, errors.New("collapsed: malformed input")
		}
		weight, err := strconv.ParseUint(line[idx+1:], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("collapsed: malformed input: %w", err)
		}
		res = append(res, Line{Path: line[:idx], Weight: weight})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("collapsed: failed to read input: %w", err)
	}

	return res, nil
}

func Encode(lines []Line, w io.Writer) error {
	for i := range lines {
		if err := encodeLine(w, lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeReversed writes lines last to first, which is the order flame graph
// renderers in the collapsed-stack tradition expect to ingest them in.
func EncodeReversed(lines []Line, w io.Writer) error {
	for i := len(lines) - 1; i >= 0; i-- {
		if err := encodeLine(w, lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeLine(w io.Writer, line Line) error {
	_, err := fmt.Fprintf(w, "%s %d\n", line.Path, line.Weight)
	return err
}
