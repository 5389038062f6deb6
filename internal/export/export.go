// Package export renders assistant replies as downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"
)

// ErrUnknownFormat is returned by Render for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Supported formats.
const (
	FormatText = "txt"
	FormatDoc  = "doc"
)

// Content types for the rendered files.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeDoc  = "application/msword"
)

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Filename builds a download name from the first two words of the prompt and
// the date, e.g. "Launch_email_15Oct2026.txt". ext includes the leading dot.
func Filename(prompt string, now time.Time, ext string) string {
	words := strings.FieldsFunc(prompt, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > 2 {
		words = words[:2]
	}
	stem := strings.Join(words, "_")
	if stem == "" {
		stem = "response"
	}
	return stem + "_" + now.Format("02Jan2006") + ext
}

// PlainText returns content as UTF-8 text.
func PlainText(content string) []byte {
	return []byte(content)
}

// WordDoc wraps content in a minimal HTML document that word processors open
// as a .doc file. Each line becomes one paragraph.
func WordDoc(content string) []byte {
	var b bytes.Buffer
	b.WriteString(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:w="urn:schemas-microsoft-com:office:word" xmlns="http://www.w3.org/TR/REC-html40">`)
	b.WriteString("\n<head><meta charset=\"utf-8\"><title>Export</title></head>\n<body>\n")
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

// Render produces the export of content in format, named after prompt.
func Render(format, prompt, content string, now time.Time) (File, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText:
		return File{
			Name:        Filename(prompt, now, ".txt"),
			ContentType: ContentTypeText,
			Body:        PlainText(content),
		}, nil
	case FormatDoc:
		return File{
			Name:        Filename(prompt, now, ".doc"),
			ContentType: ContentTypeDoc,
			Body:        WordDoc(content),
		}, nil
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
