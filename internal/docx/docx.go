// Package docx performs placeholder substitution inside .docx documents.
//
// Substitution works on whole paragraphs: each paragraph's run texts are
// concatenated into one logical string, every {{FIELD}} occurrence with a
// known value is replaced, and paragraphs that changed are collapsed to a
// single uniformly styled run. Collapsing trades mixed formatting inside a
// changed paragraph for correct substitution when a placeholder is split
// across run boundaries, which word processors do freely. Paragraphs without
// matches are left byte-for-byte untouched, table cells included.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/beevik/etree"
)

// Uniform style applied to substituted paragraphs.
const (
	substitutedFont     = "Arial"
	substitutedHalfSize = "22" // 11pt in OOXML half-points
)

const documentPart = "word/document.xml"

// ReplacePlaceholders returns a copy of the .docx with every {{NAME}} token
// whose NAME is a key of values replaced by the corresponding value.
// Unknown placeholders are left as literal text.
func ReplacePlaceholders(docxBytes []byte, values map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(docxBytes), int64(len(docxBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx container: %w", err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	found := false
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open docx entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read docx entry %s: %w", f.Name, err)
		}

		if f.Name == documentPart {
			content, err = substituteDocument(content, values)
			if err != nil {
				return nil, err
			}
			found = true
		}

		header := &zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified}
		w, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create docx entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write docx entry %s: %w", f.Name, err)
		}
	}
	if !found {
		return nil, fmt.Errorf("docx container has no %s", documentPart)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx container: %w", err)
	}
	return out.Bytes(), nil
}

// substituteDocument rewrites word/document.xml. Body paragraphs and table
// cell paragraphs are all w:p elements, so one descendant scan covers both.
func substituteDocument(content []byte, values map[string]string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("failed to parse document XML: %w", err)
	}

	replaced := 0
	for _, p := range doc.FindElements("//w:p") {
		if substituteParagraph(p, values) {
			replaced++
		}
	}
	slog.Debug("docx substitution done", "paragraphs_changed", replaced)

	result, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document XML: %w", err)
	}
	return result, nil
}

// substituteParagraph collapses the paragraph to one styled run when any
// placeholder matched. Returns whether the paragraph changed.
func substituteParagraph(p *etree.Element, values map[string]string) bool {
	runs := p.SelectElements("w:r")
	if len(runs) == 0 {
		return false
	}

	var sb strings.Builder
	for _, r := range runs {
		for _, t := range r.SelectElements("w:t") {
			sb.WriteString(t.Text())
		}
	}
	full := sb.String()

	updated := full
	for name, value := range values {
		updated = strings.ReplaceAll(updated, "{{"+name+"}}", value)
	}
	if updated == full {
		return false
	}

	for _, r := range runs[1:] {
		p.RemoveChild(r)
	}
	first := runs[0]
	for _, child := range first.ChildElements() {
		first.RemoveChild(child)
	}

	rPr := first.CreateElement("w:rPr")
	fonts := rPr.CreateElement("w:rFonts")
	fonts.CreateAttr("w:ascii", substitutedFont)
	fonts.CreateAttr("w:hAnsi", substitutedFont)
	fonts.CreateAttr("w:eastAsia", substitutedFont)
	fonts.CreateAttr("w:cs", substitutedFont)
	rPr.CreateElement("w:sz").CreateAttr("w:val", substitutedHalfSize)
	rPr.CreateElement("w:szCs").CreateAttr("w:val", substitutedHalfSize)

	t := first.CreateElement("w:t")
	t.CreateAttr("xml:space", "preserve")
	t.SetText(updated)
	return true
}
