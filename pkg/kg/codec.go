package kg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const dumpHeader = "# knowledge graph triples"

// Dump writes the graph as line-oriented triples in insertion order.
// Dumping an unchanged graph always produces identical bytes, which
// keeps serialized snapshots diffable.
func (g *Graph) Dump(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(dumpHeader + "\n"); err != nil {
		return fmt.Errorf("failed to dump graph: %w", err)
	}
	for i := range g.relations {
		r := &g.relations[i]
		line := fmt.Sprintf("<%s> <%s> %s .\n", r.Subject, r.Predicate, encodeObject(r.Object))
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("failed to dump graph: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to dump graph: %w", err)
	}
	return nil
}

// Load merges triples serialized by Dump into the graph, labeling every
// relation with the given source. Loading the same data twice leaves the
// relation set unchanged. Blank lines and lines starting with '#' are
// skipped.
func (g *Graph) Load(r io.Reader, source string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		subject, predicate, object, err := parseTriple(line)
		if err != nil {
			return fmt.Errorf("failed to load graph: line %d: %w", lineNo, err)
		}

		if predicate == KindPredicate {
			if object.Kind != ValueString {
				return fmt.Errorf("failed to load graph: line %d: entity kind must be a string literal", lineNo)
			}
			if err := g.AddEntityFrom(source, object.Text, subject, nil); err != nil {
				return fmt.Errorf("failed to load graph: line %d: %w", lineNo, err)
			}
			continue
		}

		if err := g.AddRelationFrom(source, subject, predicate, object); err != nil {
			return fmt.Errorf("failed to load graph: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	return nil
}

func encodeObject(v Value) string {
	switch v.Kind {
	case ValueRef:
		return "<" + v.Text + ">"
	case ValueString:
		return strconv.Quote(v.Text)
	default:
		return strconv.Quote(v.Text) + "^^" + string(v.Kind)
	}
}

func parseTriple(line string) (string, string, Value, error) {
	subject, rest, err := parseAngled(line)
	if err != nil {
		return "", "", Value{}, fmt.Errorf("subject: %w", err)
	}
	predicate, rest, err := parseAngled(rest)
	if err != nil {
		return "", "", Value{}, fmt.Errorf("predicate: %w", err)
	}
	object, rest, err := parseObject(rest)
	if err != nil {
		return "", "", Value{}, fmt.Errorf("object: %w", err)
	}
	if strings.TrimSpace(rest) != "." {
		return "", "", Value{}, fmt.Errorf("missing terminating '.'")
	}
	return subject, predicate, object, nil
}

func parseAngled(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", "", fmt.Errorf("expected '<'")
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated '<'")
	}
	name := s[1:end]
	if name == "" {
		return "", "", fmt.Errorf("empty name")
	}
	return name, s[end+1:], nil
}

func parseObject(s string) (Value, string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		id, rest, err := parseAngled(s)
		if err != nil {
			return Value{}, "", err
		}
		return Ref(id), rest, nil
	}
	if !strings.HasPrefix(s, `"`) {
		return Value{}, "", fmt.Errorf("expected '<' or '\"'")
	}

	end := quotedEnd(s)
	if end < 0 {
		return Value{}, "", fmt.Errorf("unterminated string literal")
	}
	text, err := strconv.Unquote(s[:end+1])
	if err != nil {
		return Value{}, "", fmt.Errorf("invalid string literal: %w", err)
	}

	rest := s[end+1:]
	if !strings.HasPrefix(rest, "^^") {
		return String(text), rest, nil
	}

	rest = rest[2:]
	kindEnd := 0
	for kindEnd < len(rest) && rest[kindEnd] != ' ' && rest[kindEnd] != '\t' {
		kindEnd++
	}
	kind := ValueKind(rest[:kindEnd])
	switch kind {
	case ValueNumber, ValueBool, ValueDate:
	default:
		return Value{}, "", fmt.Errorf("unknown literal kind %q", string(kind))
	}
	return Value{Kind: kind, Text: text}, rest[kindEnd:], nil
}

func quotedEnd(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
