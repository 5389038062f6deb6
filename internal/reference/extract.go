// Package reference turns uploaded reference documents into plain text.
package reference

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// MaxUploadBytes caps the size of an uploaded reference document.
const MaxUploadBytes = 10 << 20

var (
	// ErrUnsupportedType is returned for file extensions Extract cannot read.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrEmptyDocument is returned when a document contains no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// Extract decodes data into plain text based on the extension of filename.
// Plain text and markdown are returned as written, with line endings
// converted to LF. Text pulled out of pdf, docx and html is normalized.
func Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md":
		text = strings.ReplaceAll(strings.ToValidUTF8(string(data), "�"), "\r\n", "\n")
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyDocument
		}
		return text, nil
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".html", ".htm":
		text, err = extractHTML(data)
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedType, ext, strings.Join(SupportedExtensions(), ", "))
	}
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", filename, err)
	}

	text = normalize(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// SupportedExtensions lists the extensions Extract accepts.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".pdf", ".docx", ".html", ".htm"}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(b), nil
}

// extractDOCX reads the paragraphs of word/document.xml. Runs inside a
// paragraph are concatenated; each paragraph ends with a newline.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(io.LimitReader(rc, 4*MaxUploadBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var sb strings.Builder
	walkHTML(doc, &sb, 0)
	return sb.String(), nil
}

func walkHTML(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "head":
			return
		case "br":
			sb.WriteByte('\n')
		case "li":
			sb.WriteString("\n- ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "section", "article", "blockquote", "pre", "tr",
			"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "table":
			sb.WriteString("\n\n")
		}
	}
}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// normalize trims each line, collapses runs of blanks and limits blank
// lines to one.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
