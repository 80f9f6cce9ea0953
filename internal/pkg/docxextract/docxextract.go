// Package docxextract pulls paragraph text and paragraph style names out of
// .docx archives. Only word/document.xml is consulted; headers, footers and
// embedded objects are ignored.
package docxextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNoDocument = errors.New("docx archive has no word/document.xml")

// Paragraph is one w:p element. Style carries the w:pStyle value when the
// paragraph has one ("Heading1", "Rubrik2", ...), otherwise empty.
type Paragraph struct {
	Text  string
	Style string
}

// IsHeading reports whether the paragraph style names a heading, in either
// the English or the Swedish style catalogue.
func (p Paragraph) IsHeading() bool {
	s := strings.ToLower(p.Style)
	return strings.HasPrefix(s, "heading") || strings.HasPrefix(s, "rubrik")
}

// HeadingLevel returns the numeric suffix of a heading style, or 0 when the
// paragraph is not a heading or carries no level.
func (p Paragraph) HeadingLevel() int {
	if !p.IsHeading() {
		return 0
	}
	digits := strings.TrimLeft(strings.ToLower(p.Style), "abcdefghijklmnopqrstuvwxyz ")
	level := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			break
		}
		level = level*10 + int(r-'0')
	}
	return level
}

type xmlDocument struct {
	Body xmlBody `xml:"body"`
}

type xmlBody struct {
	Paragraphs []xmlParagraph `xml:"p"`
}

type xmlParagraph struct {
	Props xmlParaProps `xml:"pPr"`
	Runs  []xmlRun     `xml:"r"`
}

type xmlParaProps struct {
	Style xmlStyle `xml:"pStyle"`
}

type xmlStyle struct {
	Val string `xml:"val,attr"`
}

type xmlRun struct {
	Texts []string `xml:"t"`
}

// ExtractParagraphs parses the archive and returns every paragraph in
// document order, including empty ones so callers can detect blank
// separators.
func ExtractParagraphs(data []byte) ([]Paragraph, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive failed: %w", err)
	}
	var docFile *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, ErrNoDocument
	}
	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open word/document.xml failed: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read word/document.xml failed: %w", err)
	}
	var doc xmlDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse word/document.xml failed: %w", err)
	}

	paragraphs := make([]Paragraph, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, run := range p.Runs {
			for _, t := range run.Texts {
				sb.WriteString(t)
			}
		}
		paragraphs = append(paragraphs, Paragraph{
			Text:  strings.TrimSpace(sb.String()),
			Style: p.Props.Style.Val,
		})
	}
	return paragraphs, nil
}

// ExtractText joins the non-empty paragraphs with newlines.
func ExtractText(data []byte) (string, error) {
	paragraphs, err := ExtractParagraphs(data)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, p := range paragraphs {
		if p.Text != "" {
			lines = append(lines, p.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
