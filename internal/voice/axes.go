package voice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned when a string does not name a value of an axis.
var ErrUnknownValue = errors.New("unknown value")

// entry pairs a display key with its human-readable description.
type entry struct {
	key  string
	desc string
}

// CommunicationStyle is how the generated text should sound.
type CommunicationStyle int

const (
	Direct CommunicationStyle = iota
	Encouraging
	Playful
	Witty
	Professional
	Warm
	Bold
	numCommunicationStyles
)

var communicationStyles = [numCommunicationStyles]entry{
	Direct:       {"Direct", "No fluff. Just the point."},
	Encouraging:  {"Encouraging", "Supportive and constructive."},
	Playful:      {"Playful", "Cheeky and casual."},
	Witty:        {"Witty", "Sharp with a hilarious dry English style twist."},
	Professional: {"Professional", "Stick to clarity and credibility. Prioritize useful information over personality. Avoid slang, metaphors, and theatrics. Maintain a confident, modern tone — think human, not chatty."},
	Warm:         {"Warm", "Friendly and human."},
	Bold:         {"Bold", "Confident, strong statements."},
}

// ContentFormat is the shape the generated text should take.
type ContentFormat int

const (
	StepByStep ContentFormat = iota
	QuickSummary
	DetailedBreakdown
	ActionList
	Analytical
	Conversational
	numContentFormats
)

var contentFormats = [numContentFormats]entry{
	StepByStep:        {"Step-by-Step", "Give me a clear numbered sequence."},
	QuickSummary:      {"Quick Summary", "Just the key points, fast. No waffle."},
	DetailedBreakdown: {"Detailed Breakdown", "Explain clearly with depth and reasons."},
	ActionList:        {"Action List", "What do I do next? Give bullet points."},
	Analytical:        {"Analytical", "Back it up with logic."},
	Conversational:    {"Conversational", "Make it feel like a chat."},
}

// Generation is the target audience's generation.
type Generation int

const (
	GenAlpha Generation = iota
	GenZ
	Millennials
	WiseMillennials
	GenX
	Boomers
	SilentGeneration
	Mixed
	numGenerations
)

var generations = [numGenerations]entry{
	GenAlpha:         {"Gen Alpha (b.2013–2025)", "Immersed in tech. Intuitive and playful."},
	GenZ:             {"Gen Z (b.1997–2012)", "Fast, visual, and meme-fluent. Include emojis."},
	Millennials:      {"Millennials (b.1990–1996)", "Digital-native. Likes social and gamified tone."},
	WiseMillennials:  {"Wise Millennials (b.1981–1989)", "Bridges analog and digital. Values clarity and feedback."},
	GenX:             {"Gen X (b.1965–1980)", "Independent and direct. Prefers practical and honest tone."},
	Boomers:          {"Boomers (b.1946–1964)", "Structured and respectful. Clear value and reliability."},
	SilentGeneration: {"Silent Generation (1928–1945)", "Formal, respectful, and rooted in tradition. Responds to clarity, courtesy, and structured messaging."},
	Mixed:            {"Mixed", "Blend tone and rhythm across generations. Focus on clarity and personality."},
}

// Length is the target size of the generated text.
type Length int

const (
	Short Length = iota
	Medium
	Long
	numLengths
)

var lengths = [numLengths]entry{
	Short:  {"Short", "Keep content under 100 words"},
	Medium: {"Medium", "100-200 word range"},
	Long:   {"Long", "200-500 word detailed content"},
}

// ToneFlair is the three-step intensity scale derived from the tone slider.
type ToneFlair int

const (
	Nip ToneFlair = iota
	Slash
	Blaze
	numToneFlairs
)

var toneFlairs = [numToneFlairs]entry{
	Nip:   {"Nip", "Subtly edgy."},
	Slash: {"Slash", "Sharp but stylish."},
	Blaze: {"Blaze", "Bold and direct."},
}

// Slider thresholds. Values below nipCeiling are Nip, values from
// blazeFloor up are Blaze, everything in between is Slash.
const (
	nipCeiling = 33
	blazeFloor = 66
)

// ToneFlairFromSlider maps a 0–100 slider position to a ToneFlair.
// Out-of-range positions fall into the nearest bucket.
func ToneFlairFromSlider(value int) ToneFlair {
	switch {
	case value < nipCeiling:
		return Nip
	case value < blazeFloor:
		return Slash
	default:
		return Blaze
	}
}

// String returns the display key.
func (s CommunicationStyle) String() string {
	return keyOf(communicationStyles[:], int(s), "CommunicationStyle")
}

// Description returns the instruction text for s. s must be a declared value.
func (s CommunicationStyle) Description() string { return communicationStyles[s].desc }

// Valid reports whether s is a declared value.
func (s CommunicationStyle) Valid() bool { return s >= 0 && s < numCommunicationStyles }

func (s CommunicationStyle) MarshalText() ([]byte, error) {
	return marshalText(s.Valid(), s.String())
}

func (s *CommunicationStyle) UnmarshalText(text []byte) error {
	v, err := ParseCommunicationStyle(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseCommunicationStyle converts a display key to a CommunicationStyle.
func ParseCommunicationStyle(s string) (CommunicationStyle, error) {
	i, err := parse(communicationStyles[:], "communication style", s, false)
	return CommunicationStyle(i), err
}

// AllCommunicationStyles returns every style in display order.
func AllCommunicationStyles() []CommunicationStyle {
	out := make([]CommunicationStyle, numCommunicationStyles)
	for i := range out {
		out[i] = CommunicationStyle(i)
	}
	return out
}

func (f ContentFormat) String() string {
	return keyOf(contentFormats[:], int(f), "ContentFormat")
}

// Description returns the instruction text for f. f must be a declared value.
func (f ContentFormat) Description() string { return contentFormats[f].desc }

func (f ContentFormat) Valid() bool { return f >= 0 && f < numContentFormats }

func (f ContentFormat) MarshalText() ([]byte, error) {
	return marshalText(f.Valid(), f.String())
}

func (f *ContentFormat) UnmarshalText(text []byte) error {
	v, err := ParseContentFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseContentFormat converts a display key to a ContentFormat.
func ParseContentFormat(s string) (ContentFormat, error) {
	i, err := parse(contentFormats[:], "content format", s, false)
	return ContentFormat(i), err
}

// AllContentFormats returns every format in display order.
func AllContentFormats() []ContentFormat {
	out := make([]ContentFormat, numContentFormats)
	for i := range out {
		out[i] = ContentFormat(i)
	}
	return out
}

func (g Generation) String() string {
	return keyOf(generations[:], int(g), "Generation")
}

// Description returns the instruction text for g. g must be a declared value.
func (g Generation) Description() string { return generations[g].desc }

func (g Generation) Valid() bool { return g >= 0 && g < numGenerations }

func (g Generation) MarshalText() ([]byte, error) {
	return marshalText(g.Valid(), g.String())
}

func (g *Generation) UnmarshalText(text []byte) error {
	v, err := ParseGeneration(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGeneration converts a display key to a Generation. The short name
// without the birth-year range ("Gen Z") is accepted as well.
func ParseGeneration(s string) (Generation, error) {
	i, err := parse(generations[:], "generation", s, true)
	return Generation(i), err
}

// AllGenerations returns every generation in display order.
func AllGenerations() []Generation {
	out := make([]Generation, numGenerations)
	for i := range out {
		out[i] = Generation(i)
	}
	return out
}

func (l Length) String() string {
	return keyOf(lengths[:], int(l), "Length")
}

// Description returns the instruction text for l. l must be a declared value.
func (l Length) Description() string { return lengths[l].desc }

func (l Length) Valid() bool { return l >= 0 && l < numLengths }

func (l Length) MarshalText() ([]byte, error) {
	return marshalText(l.Valid(), l.String())
}

func (l *Length) UnmarshalText(text []byte) error {
	v, err := ParseLength(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLength converts a display key to a Length.
func ParseLength(s string) (Length, error) {
	i, err := parse(lengths[:], "length", s, false)
	return Length(i), err
}

// AllLengths returns every length in display order.
func AllLengths() []Length {
	out := make([]Length, numLengths)
	for i := range out {
		out[i] = Length(i)
	}
	return out
}

func (t ToneFlair) String() string {
	return keyOf(toneFlairs[:], int(t), "ToneFlair")
}

// Description returns a short label for t. t must be a declared value.
func (t ToneFlair) Description() string { return toneFlairs[t].desc }

func (t ToneFlair) Valid() bool { return t >= 0 && t < numToneFlairs }

func (t ToneFlair) MarshalText() ([]byte, error) {
	return marshalText(t.Valid(), t.String())
}

func (t *ToneFlair) UnmarshalText(text []byte) error {
	v, err := ParseToneFlair(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseToneFlair converts a flair name to a ToneFlair.
func ParseToneFlair(s string) (ToneFlair, error) {
	i, err := parse(toneFlairs[:], "tone flair", s, false)
	return ToneFlair(i), err
}

// AllToneFlairs returns every flair from mildest to strongest.
func AllToneFlairs() []ToneFlair {
	return []ToneFlair{Nip, Slash, Blaze}
}

func keyOf(table []entry, i int, typ string) string {
	if i < 0 || i >= len(table) {
		return fmt.Sprintf("%s(%d)", typ, i)
	}
	return table[i].key
}

func marshalText(valid bool, key string) ([]byte, error) {
	if !valid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownValue, key)
	}
	return []byte(key), nil
}

// parse matches s against the keys of table, ignoring case and surrounding
// whitespace. With short set, the key text before " (" also matches.
func parse(table []entry, axis, s string, short bool) (int, error) {
	s = strings.TrimSpace(s)
	for i, e := range table {
		if strings.EqualFold(e.key, s) {
			return i, nil
		}
		if short {
			if name, _, ok := strings.Cut(e.key, " ("); ok && strings.EqualFold(name, s) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%s %q: %w", axis, s, ErrUnknownValue)
}
