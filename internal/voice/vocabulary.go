package voice

// Option is one selectable value of an axis.
type Option struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Axis describes one configuration control for a selector UI.
type Axis struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Hint    string   `json:"hint"`
	Options []Option `json:"options"`
}

// Vocabulary returns every axis with its options in display order.
func Vocabulary() []Axis {
	return []Axis{
		{
			Name:    "communication_style",
			Label:   "Communication Style",
			Hint:    "How the writing should sound.",
			Options: options(communicationStyles[:]),
		},
		{
			Name:    "content_format",
			Label:   "Content Format",
			Hint:    "How the answer should be laid out.",
			Options: options(contentFormats[:]),
		},
		{
			Name:    "generation",
			Label:   "Generation",
			Hint:    "Who you are writing for.",
			Options: options(generations[:]),
		},
		{
			Name:    "length",
			Label:   "Length",
			Hint:    "How much to write.",
			Options: options(lengths[:]),
		},
		{
			Name:    "tone_flair",
			Label:   "Tone Flair",
			Hint:    "Choose how bold you want the writing to sound: Subtly edgy (Nip), sharp but stylish (Slash) or bold and direct (Blaze).",
			Options: options(toneFlairs[:]),
		},
	}
}

// ReferenceHint is shown next to the reference document upload.
const ReferenceHint = "Upload a reference doc. AI is not secure, don't upload secrets or scandals."

func options(table []entry) []Option {
	out := make([]Option, len(table))
	for i, e := range table {
		out[i] = Option{Key: e.key, Description: e.desc}
	}
	return out
}
