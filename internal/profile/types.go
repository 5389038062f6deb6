package profile

import (
	"fmt"

	"github.com/kalambet/brandvoice/internal/voice"
)

// Storage keys for the persisted voice settings.
const (
	keyCommunicationStyle = "voice.communication_style"
	keyContentFormat      = "voice.content_format"
	keyGeneration         = "voice.generation"
	keyLength             = "voice.length"
	keyToneSlider         = "voice.tone_slider"
	keyUltraDirect        = "voice.ultra_direct"
	keyReferenceID        = "voice.reference_id"
)

// Settings is the user's stored voice configuration. Unlike voice.Profile it
// keeps the raw slider position so a client can round-trip it, and refers to
// the attached reference document by ID rather than carrying its text.
type Settings struct {
	CommunicationStyle voice.CommunicationStyle `json:"communication_style"`
	ContentFormat      voice.ContentFormat      `json:"content_format"`
	Generation         voice.Generation         `json:"generation"`
	Length             voice.Length             `json:"length"`
	ToneSlider         int                      `json:"tone_slider"`
	ToneFlair          voice.ToneFlair          `json:"tone_flair"`
	UltraDirect        bool                     `json:"ultra_direct"`
	ReferenceID        string                   `json:"reference_id,omitempty"`
}

// DefaultSettings mirrors voice.DefaultProfile.
func DefaultSettings() Settings {
	d := voice.DefaultProfile()
	return Settings{
		CommunicationStyle: d.CommunicationStyle,
		ContentFormat:      d.ContentFormat,
		Generation:         d.Generation,
		Length:             d.Length,
		ToneSlider:         voice.DefaultSlider,
		ToneFlair:          d.ToneFlair,
		UltraDirect:        d.UltraDirect,
	}
}

// Profile derives the compiler input from the settings.
func (s Settings) Profile(referenceText string) voice.Profile {
	return voice.Profile{
		CommunicationStyle: s.CommunicationStyle,
		ContentFormat:      s.ContentFormat,
		Generation:         s.Generation,
		Length:             s.Length,
		ToneFlair:          voice.ToneFlairFromSlider(s.ToneSlider),
		UltraDirect:        s.UltraDirect,
		ReferenceText:      referenceText,
	}
}

// Patch is a partial update to Settings. Nil fields are left unchanged.
// ClearReference detaches the reference document and wins over ReferenceID.
type Patch struct {
	CommunicationStyle *voice.CommunicationStyle `json:"communication_style,omitempty"`
	ContentFormat      *voice.ContentFormat      `json:"content_format,omitempty"`
	Generation         *voice.Generation         `json:"generation,omitempty"`
	Length             *voice.Length             `json:"length,omitempty"`
	ToneSlider         *int                      `json:"tone_slider,omitempty"`
	UltraDirect        *bool                     `json:"ultra_direct,omitempty"`
	ReferenceID        *string                   `json:"reference_id,omitempty"`
	ClearReference     bool                      `json:"-"`
}

// Apply returns s with p applied, without persisting anything.
func (s Settings) Apply(p Patch) Settings {
	if p.CommunicationStyle != nil {
		s.CommunicationStyle = *p.CommunicationStyle
	}
	if p.ContentFormat != nil {
		s.ContentFormat = *p.ContentFormat
	}
	if p.Generation != nil {
		s.Generation = *p.Generation
	}
	if p.Length != nil {
		s.Length = *p.Length
	}
	if p.ToneSlider != nil {
		s.ToneSlider = clampSlider(*p.ToneSlider)
	}
	if p.UltraDirect != nil {
		s.UltraDirect = *p.UltraDirect
	}
	switch {
	case p.ClearReference:
		s.ReferenceID = ""
	case p.ReferenceID != nil:
		s.ReferenceID = *p.ReferenceID
	}
	s.ToneFlair = voice.ToneFlairFromSlider(s.ToneSlider)
	return s
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.CommunicationStyle == nil && p.ContentFormat == nil &&
		p.Generation == nil && p.Length == nil && p.ToneSlider == nil &&
		p.UltraDirect == nil && p.ReferenceID == nil && !p.ClearReference
}

func (p Patch) validate() error {
	switch {
	case p.CommunicationStyle != nil && !p.CommunicationStyle.Valid():
		return fmt.Errorf("communication style %d: %w", *p.CommunicationStyle, voice.ErrUnknownValue)
	case p.ContentFormat != nil && !p.ContentFormat.Valid():
		return fmt.Errorf("content format %d: %w", *p.ContentFormat, voice.ErrUnknownValue)
	case p.Generation != nil && !p.Generation.Valid():
		return fmt.Errorf("generation %d: %w", *p.Generation, voice.ErrUnknownValue)
	case p.Length != nil && !p.Length.Valid():
		return fmt.Errorf("length %d: %w", *p.Length, voice.ErrUnknownValue)
	}
	return nil
}

// clampSlider bounds a slider position to [0,100].
func clampSlider(v int) int {
	return max(0, min(100, v))
}
