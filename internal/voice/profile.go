package voice

// DefaultSlider is the tone slider position a fresh profile starts at.
const DefaultSlider = 50

// Profile is the complete voice configuration handed to the instruction
// compiler. It is plain data and is passed by value.
type Profile struct {
	CommunicationStyle CommunicationStyle `json:"communication_style" yaml:"communication_style"`
	ContentFormat      ContentFormat      `json:"content_format" yaml:"content_format"`
	Generation         Generation         `json:"generation" yaml:"generation"`
	Length             Length             `json:"length" yaml:"length"`
	ToneFlair          ToneFlair          `json:"tone_flair" yaml:"tone_flair"`
	UltraDirect        bool               `json:"ultra_direct" yaml:"ultra_direct"`
	ReferenceText      string             `json:"reference_text,omitempty" yaml:"reference_text,omitempty"`
}

// DefaultProfile returns the profile a new user starts with.
func DefaultProfile() Profile {
	return Profile{
		CommunicationStyle: Direct,
		ContentFormat:      StepByStep,
		Generation:         Mixed,
		Length:             Medium,
		ToneFlair:          ToneFlairFromSlider(DefaultSlider),
	}
}

// Valid reports whether every enumerated field holds a declared value.
func (p Profile) Valid() bool {
	return p.CommunicationStyle.Valid() &&
		p.ContentFormat.Valid() &&
		p.Generation.Valid() &&
		p.Length.Valid() &&
		p.ToneFlair.Valid()
}
