package composer

import (
	"strings"

	"github.com/kalambet/brandvoice/internal/voice"
)

// Compile renders p into the system instruction sent ahead of every
// conversation. The output depends only on p.
//
// The first matching mode wins: ultra-direct, then Blaze with an executive
// style, then the composed persona.
func Compile(p voice.Profile) string {
	var lines []string
	switch {
	case p.UltraDirect:
		lines = fixedMode(ultraDirectDirectives, p)
	case p.ToneFlair == voice.Blaze && executiveStyles[p.CommunicationStyle]:
		lines = fixedMode(blazeExecutiveDirectives, p)
	default:
		lines = composed(p)
	}
	return strings.Join(lines, "\n")
}

// fixedMode is a directive block followed by the three profile lines.
// Style, flair and reference text do not appear.
func fixedMode(directives []string, p voice.Profile) []string {
	lines := make([]string, 0, len(directives)+4)
	lines = append(lines, directives...)
	lines = append(lines,
		"",
		"Content Format: "+p.ContentFormat.Description(),
		"Generation: "+p.Generation.Description(),
		"Length: "+p.Length.Description(),
	)
	return lines
}

func composed(p voice.Profile) []string {
	lines := make([]string, 0, 32)
	lines = append(lines, coreTone...)

	lines = append(lines, "", moodHeading+p.ToneFlair.String())
	lines = append(lines, flairBullets[p.ToneFlair]...)

	if override, ok := styleOverrides[p.CommunicationStyle]; ok {
		lines = append(lines, override)
	}

	lines = append(lines,
		"",
		"",
		preferencesHeading,
		"Communication Style: "+p.CommunicationStyle.Description(),
		"Content Format: "+p.ContentFormat.Description(),
		"Generation: "+p.Generation.Description(),
		"Length: "+p.Length.Description()+lengthSuffix,
	)

	if p.ReferenceText != "" {
		lines = append(lines, "\n"+referenceHeading+"\n"+truncate(p.ReferenceText, maxReferenceChars))
	}
	return lines
}

// truncate keeps the first n characters of s. Characters are runes, so a
// multi-byte sequence is never cut in half.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
