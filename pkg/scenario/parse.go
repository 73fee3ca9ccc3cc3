package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Format selects the textual syntax of a scenario document
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// ParseFormat maps a format name to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatJSON, fmt.Errorf("unsupported format %q (expected json or yaml)", name)
	}
}

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// maxDepth bounds container nesting in both syntaxes
const maxDepth = 1000

// A YAML document may expand through aliases to at most
// expansionFactor nodes per input byte, and never fewer than minExpansion.
const (
	expansionFactor = 16
	minExpansion    = 1 << 16
)

// Parse turns raw text into an untyped document tree
func Parse(data []byte, format Format) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, &SyntaxError{Msg: "empty document"}
	}
	if format == FormatYAML {
		return parseYAML(data)
	}
	return parseJSON(data)
}

type jsonParser struct {
	data []byte
	dec  *json.Decoder
}

func parseJSON(data []byte) (Value, error) {
	// The decoder would silently substitute U+FFFD
	if offset := invalidUTF8(data); offset >= 0 {
		return Value{}, newSyntaxError(data, offset, "invalid UTF-8 byte sequence")
	}

	p := &jsonParser{data: data, dec: json.NewDecoder(bytes.NewReader(data))}
	p.dec.UseNumber()

	tok, err := p.next()
	if err != nil {
		return Value{}, err
	}
	root, err := p.value(tok, 0)
	if err != nil {
		return Value{}, err
	}

	// Only whitespace may follow the top-level value
	end := p.dec.InputOffset()
	if _, err := p.dec.Token(); err != io.EOF {
		if err != nil {
			return Value{}, p.wrap(err)
		}
		return Value{}, newSyntaxError(data, skipSpace(data, end), "unexpected data after top-level value")
	}
	return root, nil
}

func (p *jsonParser) next() (json.Token, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return nil, p.wrap(err)
	}
	return tok, nil
}

func (p *jsonParser) wrap(err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return newSyntaxError(p.data, se.Offset, se.Error())
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newSyntaxError(p.data, int64(len(p.data)), "unexpected end of input")
	}
	return newSyntaxError(p.data, p.dec.InputOffset(), err.Error())
}

func (p *jsonParser) value(tok json.Token, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, newSyntaxError(p.data, p.dec.InputOffset(), "document nesting too deep")
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object(depth + 1)
		case '[':
			return p.array(depth + 1)
		}
		return Value{}, newSyntaxError(p.data, p.dec.InputOffset()-1, fmt.Sprintf("unexpected %q", rune(t)))
	case bool:
		return Bool(t), nil
	case json.Number:
		v, err := numberValue(t.String())
		if err != nil {
			return Value{}, newSyntaxError(p.data, p.dec.InputOffset()-int64(len(t)), err.Error())
		}
		return v, nil
	case string:
		return String(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, newSyntaxError(p.data, p.dec.InputOffset(), fmt.Sprintf("unexpected token %v", t))
	}
}

func (p *jsonParser) object(depth int) (Value, error) {
	m := make(map[string]Value)
	for p.dec.More() {
		tok, err := p.next()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, newSyntaxError(p.data, p.dec.InputOffset(), "object key must be a string")
		}
		tok, err = p.next()
		if err != nil {
			return Value{}, err
		}
		item, err := p.value(tok, depth)
		if err != nil {
			return Value{}, err
		}
		m[key] = item
	}
	// Closing brace
	if _, err := p.next(); err != nil {
		return Value{}, err
	}
	return Value{kind: MapKind, m: m}, nil
}

func (p *jsonParser) array(depth int) (Value, error) {
	list := []Value{}
	for p.dec.More() {
		tok, err := p.next()
		if err != nil {
			return Value{}, err
		}
		item, err := p.value(tok, depth)
		if err != nil {
			return Value{}, err
		}
		list = append(list, item)
	}
	// Closing bracket
	if _, err := p.next(); err != nil {
		return Value{}, err
	}
	return Value{kind: ListKind, list: list}, nil
}

func skipSpace(data []byte, offset int64) int64 {
	for offset < int64(len(data)) {
		switch data[offset] {
		case ' ', '\t', '\r', '\n':
			offset++
		default:
			return offset
		}
	}
	return offset
}

// invalidUTF8 returns the offset of the first malformed byte, or -1
func invalidUTF8(data []byte) int64 {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return int64(i)
		}
		i += size
	}
	return -1
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func parseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, yamlSyntaxError(data, err)
	}
	if len(doc.Content) == 0 {
		return Value{}, &SyntaxError{Msg: "empty document"}
	}
	return newYAMLBuilder(len(data)).node(&doc, 0)
}

// yamlSyntaxError recovers the line number yaml.v3 embeds in its messages
func yamlSyntaxError(data []byte, err error) error {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	match := yamlLinePattern.FindStringSubmatch(msg)
	if match == nil {
		return &SyntaxError{Msg: msg}
	}
	line, _ := strconv.Atoi(match[1])
	return &SyntaxError{Offset: lineOffset(data, line), Line: line, Msg: msg}
}

func lineOffset(data []byte, line int) int64 {
	current := 1
	for i, c := range data {
		if current == line {
			return int64(i)
		}
		if c == '\n' {
			current++
		}
	}
	return int64(len(data))
}

func nodeError(n *yaml.Node, msg string) error {
	return &SyntaxError{Line: n.Line, Column: n.Column, Msg: msg}
}

// yamlBuilder converts a yaml.v3 node tree, resolving aliases and merge keys
// while counting every node it produces against budget.
type yamlBuilder struct {
	nodes  int
	budget int
}

func newYAMLBuilder(size int) *yamlBuilder {
	budget := size * expansionFactor
	if budget < minExpansion {
		budget = minExpansion
	}
	return &yamlBuilder{budget: budget}
}

func (b *yamlBuilder) node(n *yaml.Node, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, nodeError(n, "document nesting too deep")
	}
	b.nodes++
	if b.nodes > b.budget {
		return Value{}, nodeError(n, "document expands too large")
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return b.node(n.Content[0], depth+1)
	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{}, nodeError(n, "unresolved alias")
		}
		return b.node(n.Alias, depth+1)
	case yaml.ScalarNode:
		return yamlScalar(n)
	case yaml.SequenceNode:
		list := make([]Value, 0, len(n.Content))
		for _, child := range n.Content {
			item, err := b.node(child, depth+1)
			if err != nil {
				return Value{}, err
			}
			list = append(list, item)
		}
		return Value{kind: ListKind, list: list}, nil
	case yaml.MappingNode:
		return b.mapping(n, depth)
	default:
		return Value{}, nodeError(n, "unsupported node")
	}
}

func (b *yamlBuilder) mapping(n *yaml.Node, depth int) (Value, error) {
	m := make(map[string]Value, len(n.Content)/2)

	// Merged keys go in first so explicit keys override them
	for i := 0; i+1 < len(n.Content); i += 2 {
		if isMergeKey(n.Content[i]) {
			if err := b.merge(m, n.Content[i+1], depth+1); err != nil {
				return Value{}, err
			}
		}
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]
		if isMergeKey(keyNode) {
			continue
		}
		if keyNode.Kind != yaml.ScalarNode {
			return Value{}, nodeError(keyNode, "mapping key must be a scalar")
		}
		if keyNode.ShortTag() != "!!str" {
			return Value{}, nodeError(keyNode, fmt.Sprintf("mapping key %q must be a string", keyNode.Value))
		}
		item, err := b.node(valueNode, depth+1)
		if err != nil {
			return Value{}, err
		}
		m[keyNode.Value] = item
	}
	return Value{kind: MapKind, m: m}, nil
}

// merge copies the keys of a "<<" value into m. In a sequence of mappings
// the earlier ones win.
func (b *yamlBuilder) merge(m map[string]Value, n *yaml.Node, depth int) error {
	sources := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		sources = n.Content
	}
	for i := len(sources) - 1; i >= 0; i-- {
		v, err := b.node(sources[i], depth)
		if err != nil {
			return err
		}
		if v.kind != MapKind {
			return nodeError(sources[i], "merge value must be a mapping")
		}
		for k, item := range v.m {
			m[k] = item
		}
	}
	return nil
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!merge"
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, nodeError(n, err.Error())
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, nodeError(n, err.Error())
		}
		return Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, nodeError(n, err.Error())
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, nodeError(n, fmt.Sprintf("non-finite number %q is not representable", n.Value))
		}
		return Float(f), nil
	default:
		return String(n.Value), nil
	}
}
