package tsfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .ts file. It fails with *IOError when the file
// cannot be read and *ParseError when it is not a well-formed catalog.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	c, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Parse parses .ts document bytes. Nesting errors such as a <message> left
// open when its <context> closes are reported as *ParseError; no partial
// catalog is returned.
func Parse(data []byte) (*Catalog, error) {
	p := &parser{dec: xml.NewDecoder(bytes.NewReader(data))}
	c, err := p.parseDocument()
	if err != nil {
		line, _ := p.dec.InputPos()
		return nil, &ParseError{Line: line, Err: err}
	}
	return c, nil
}

type parser struct {
	dec *xml.Decoder
}

func (p *parser) parseDocument() (*Catalog, error) {
	var c *Catalog
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if c != nil {
			return nil, fmt.Errorf("unexpected element <%s> after </TS>", start.Name.Local)
		}
		if start.Name.Local != "TS" {
			return nil, fmt.Errorf("root element is <%s>, want <TS>", start.Name.Local)
		}
		c = &Catalog{
			version:    attr(start, "version"),
			language:   attr(start, "language"),
			sourceLang: attr(start, "sourcelanguage"),
		}
		if err := p.parseRoot(c); err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, errors.New("no <TS> root element")
	}
	return c, nil
}

func (p *parser) parseRoot(c *Catalog) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return unexpectedEOF(err, "TS")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "context" {
				if err := p.dec.Skip(); err != nil {
					return err
				}
				continue
			}
			entries, err := p.parseContext()
			if err != nil {
				return err
			}
			c.entries = append(c.entries, entries...)
		case xml.EndElement:
			return nil
		}
	}
}

// parseContext reads one <context> block. The context name is applied to all
// messages of the block, wherever <name> appears inside it.
func (p *parser) parseContext() ([]Entry, error) {
	var name string
	var entries []Entry
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err, "context")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				if name, err = p.readText("name"); err != nil {
					return nil, err
				}
			case "message":
				e, err := p.parseMessage()
				if err != nil {
					return nil, err
				}
				entries = append(entries, e)
			default:
				if err := p.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			for i := range entries {
				entries[i].Context = name
			}
			return entries, nil
		}
	}
}

func (p *parser) parseMessage() (Entry, error) {
	e := Entry{State: Finished}
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return Entry{}, unexpectedEOF(err, "message")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "source":
				e.Source, err = p.readText("source")
			case "translation":
				e.State = ParseState(attr(t, "type"))
				e.Translation, err = p.readText("translation")
			case "comment":
				var text string
				text, err = p.readText("comment")
				e.Comments = append(e.Comments, text)
			case "location":
				e.Locations = append(e.Locations, attr(t, "filename")+":"+attr(t, "line"))
				err = p.dec.Skip()
			default:
				err = p.dec.Skip()
			}
			if err != nil {
				return Entry{}, err
			}
		case xml.EndElement:
			return e, nil
		}
	}
}

// readText returns the character data of the element just opened, including
// text of any nested children, and consumes its end tag.
func (p *parser) readText(elem string) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := p.dec.Token()
		if err != nil {
			return "", unexpectedEOF(err, elem)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return b.String(), nil
}

func unexpectedEOF(err error, elem string) error {
	if err == io.EOF {
		return fmt.Errorf("unexpected end of document inside <%s>", elem)
	}
	return err
}

func attr(elem xml.StartElement, name string) string {
	for _, a := range elem.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFile renders the catalog and writes it to path, replacing the whole
// file. It fails with *IOError when the destination cannot be written.
func (c *Catalog) WriteFile(path string) error {
	data := c.Marshal()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Marshal renders the catalog as a .ts document.
//
// Entries are grouped by context in first-seen order; same-named contexts
// that were interleaved in the source document are merged into one block.
// A Finished translation carries no "type" attribute.
func (c *Catalog) Marshal() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<!DOCTYPE TS>\n")
	b.WriteString("<TS")
	writeAttr(&b, "version", c.version)
	writeAttr(&b, "language", c.language)
	if c.sourceLang != "" {
		writeAttr(&b, "sourcelanguage", c.sourceLang)
	}
	b.WriteString(">\n")

	for _, group := range c.groupByContext() {
		b.WriteString("  <context>\n")
		b.WriteString("    <name>" + escapeText(group[0].Context) + "</name>\n")
		for _, e := range group {
			writeMessage(&b, e)
		}
		b.WriteString("  </context>\n")
	}

	b.WriteString("</TS>\n")
	return []byte(b.String())
}

// groupByContext is a stable grouping of entries by context name.
func (c *Catalog) groupByContext() [][]*Entry {
	var groups [][]*Entry
	pos := make(map[string]int)
	for i := range c.entries {
		e := &c.entries[i]
		g, ok := pos[e.Context]
		if !ok {
			g = len(groups)
			pos[e.Context] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], e)
	}
	return groups
}

func writeMessage(b *strings.Builder, e *Entry) {
	b.WriteString("    <message>\n")
	for _, loc := range e.Locations {
		file, line, ok := splitLocation(loc)
		if !ok {
			continue
		}
		b.WriteString("      <location")
		writeAttr(b, "filename", file)
		writeAttr(b, "line", line)
		b.WriteString("/>\n")
	}
	for _, comment := range e.Comments {
		b.WriteString("      <comment>" + escapeText(comment) + "</comment>\n")
	}
	b.WriteString("      <source>" + escapeText(e.Source) + "</source>\n")
	b.WriteString("      <translation")
	if e.State != Finished {
		writeAttr(b, "type", e.State.String())
	}
	b.WriteString(">" + escapeText(e.Translation) + "</translation>\n")
	b.WriteString("    </message>\n")
}

// splitLocation splits "file:line" at the last colon, so Windows drive
// letters stay in the file part.
func splitLocation(loc string) (file, line string, ok bool) {
	i := strings.LastIndex(loc, ":")
	if i < 0 {
		return "", "", false
	}
	return loc[:i], loc[i+1:], true
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" " + name + "=\"" + escapeText(value) + "\"")
}

func escapeText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
