package composer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/brandvoice/internal/voice"
)

// allProfiles enumerates every combination of the enumerated axes and the
// ultra-direct flag, with and without reference text.
func allProfiles() []voice.Profile {
	var out []voice.Profile
	for _, s := range voice.AllCommunicationStyles() {
		for _, f := range voice.AllContentFormats() {
			for _, g := range voice.AllGenerations() {
				for _, l := range voice.AllLengths() {
					for _, tf := range voice.AllToneFlairs() {
						for _, ud := range []bool{false, true} {
							for _, ref := range []string{"", "notes"} {
								out = append(out, voice.Profile{
									CommunicationStyle: s,
									ContentFormat:      f,
									Generation:         g,
									Length:             l,
									ToneFlair:          tf,
									UltraDirect:        ud,
									ReferenceText:      ref,
								})
							}
						}
					}
				}
			}
		}
	}
	return out
}

func TestCompile_BranchPrecedence(t *testing.T) {
	for _, p := range allProfiles() {
		out := Compile(p)
		executive := p.CommunicationStyle == voice.Professional || p.CommunicationStyle == voice.Direct

		switch {
		case p.UltraDirect:
			if !strings.HasPrefix(out, "Ultra-Direct Mode is ON.") {
				t.Fatalf("%+v: ultra-direct output has wrong prefix: %q", p, firstLine(out))
			}
			if strings.Contains(out, "Blaze Mode — Executive edition.") || strings.Contains(out, "## Core Tone Rules") {
				t.Fatalf("%+v: ultra-direct output leaked another mode", p)
			}
		case p.ToneFlair == voice.Blaze && executive:
			if !strings.HasPrefix(out, "Blaze Mode — Executive edition.") {
				t.Fatalf("%+v: executive output has wrong prefix: %q", p, firstLine(out))
			}
			if strings.Contains(out, "## Core Tone Rules") || strings.Contains(out, "Ultra-Direct Mode is ON.") {
				t.Fatalf("%+v: executive output leaked another mode", p)
			}
		default:
			if !strings.Contains(out, "## Core Tone Rules") {
				t.Fatalf("%+v: composed output missing core tone", p)
			}
			if !strings.Contains(out, "## Current Mood: "+p.ToneFlair.String()) {
				t.Fatalf("%+v: composed output missing mood heading", p)
			}
		}
	}
}

func TestCompile_FixedModesIgnoreStyleFlairAndReference(t *testing.T) {
	for _, p := range allProfiles() {
		if !p.UltraDirect {
			continue
		}
		out := Compile(p)
		if strings.Contains(out, "Current Mood") {
			t.Fatalf("%+v: ultra-direct output has a mood heading", p)
		}
		if strings.Contains(out, "Reference Material Provided") {
			t.Fatalf("%+v: ultra-direct output includes reference text", p)
		}
		if strings.Contains(out, "Communication Style:") {
			t.Fatalf("%+v: ultra-direct output includes the style line", p)
		}
	}
}

func TestCompile_UltraDirectExact(t *testing.T) {
	p := voice.Profile{
		CommunicationStyle: voice.Direct,
		ContentFormat:      voice.QuickSummary,
		Generation:         voice.GenZ,
		Length:             voice.Short,
		ToneFlair:          voice.Nip,
		UltraDirect:        true,
	}
	want := strings.Join([]string{
		"Ultra-Direct Mode is ON.",
		"Write as if you're a real person who wants to help — quickly.",
		"Drop the charm. Avoid metaphors, intros, or creative phrasing.",
		"Be concise, direct, and blunt — with just enough human edge to not sound robotic.",
		"No warm-ups. No analogies. No fluff.",
		"Use full punctuation and capitalization. Do not mimic informal lowercase writing unless explicitly asked.",
		"",
		"Content Format: Just the key points, fast. No waffle.",
		"Generation: Fast, visual, and meme-fluent. Include emojis.",
		"Length: Keep content under 100 words",
	}, "\n")

	if diff := cmp.Diff(want, Compile(p)); diff != "" {
		t.Errorf("Compile mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_BlazeExecutiveExact(t *testing.T) {
	p := voice.Profile{
		CommunicationStyle: voice.Professional,
		ContentFormat:      voice.ActionList,
		Generation:         voice.Boomers,
		Length:             voice.Medium,
		ToneFlair:          voice.Blaze,
		ReferenceText:      "must not appear",
	}
	want := strings.Join([]string{
		"Blaze Mode — Executive edition.",
		"Tone must be bold, direct, and human. Skip metaphors, branded sign-offs, or dramatic flourishes.",
		"Keep sentences short. Prioritize frictionless clarity with a confident edge.",
		"Sarcasm is welcome — if it stings, not sings.",
		"No wordplay. No pep talk. This isn't advertising — it's communication.",
		"",
		"Content Format: What do I do next? Give bullet points.",
		"Generation: Structured and respectful. Clear value and reliability.",
		"Length: 100-200 word range",
	}, "\n")

	if diff := cmp.Diff(want, Compile(p)); diff != "" {
		t.Errorf("Compile mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_ComposedExact(t *testing.T) {
	p := voice.Profile{
		CommunicationStyle: voice.Witty,
		ContentFormat:      voice.Analytical,
		Generation:         voice.Mixed,
		Length:             voice.Long,
		ToneFlair:          voice.Slash,
		ReferenceText:      "Brand book v2",
	}
	want := strings.Join([]string{
		"You are Custom Content AI — a content generator with bite, style, and zero tolerance for corporate fluff.",
		"Your default tone is bold, modern, and irreverent. Think: texting a clever friend who's mildly distracted, but will absolutely roast you if you waste their time.",
		"",
		"## Core Tone Rules:",
		"Write like you're texting a mildly distracted friend — clear, casual, and charming.",
		"Avoid big words and formal tone — this isn't a TED Talk or a bank chatbot.",
		"Clarity comes first, but don't sacrifice personality. Think charm over polish.",
		"Stay human, stay cheeky, and never sound like LinkedIn on a Monday.",
		"Do not create themes, characters, metaphors, or narrative devices unless explicitly requested. Avoid turning simple tasks into storytelling. Keep it grounded in real-world language and tone.",
		"",
		"## Current Mood: Slash",
		"- Stylish. Smart. Intentional. Think editorial, not emotional.",
		"- If it cuts, it better look good doing it.",
		"- Irony is allowed, but never silly. Glossy and sharp, not shiny and loud.",
		"- Leave quotable lines — not punchlines.",
		"- Deliver like you're unfazed, not unimpressed.",
		"",
		"",
		"## User Preferences (flavor, not framework):",
		"Communication Style: Sharp with a hilarious dry English style twist.",
		"Content Format: Back it up with logic.",
		"Generation: Blend tone and rhythm across generations. Focus on clarity and personality.",
		"Length: 200-500 word detailed content - Be concise if short, thorough if long",
		"",
		"## Reference Material Provided:",
		"Brand book v2",
	}, "\n")

	if diff := cmp.Diff(want, Compile(p)); diff != "" {
		t.Errorf("Compile mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_StyleOverrideFollowsMood(t *testing.T) {
	for _, flair := range []voice.ToneFlair{voice.Nip, voice.Slash} {
		for _, style := range []voice.CommunicationStyle{voice.Professional, voice.Direct} {
			p := voice.DefaultProfile()
			p.CommunicationStyle = style
			p.ToneFlair = flair

			out := Compile(p)
			mood := strings.Index(out, "## Current Mood: "+flair.String())
			override := strings.Index(out, assertiveOverride)
			prefs := strings.Index(out, preferencesHeading)
			if mood < 0 || override < 0 || prefs < 0 {
				t.Fatalf("%v/%v: missing section (mood=%d override=%d prefs=%d)", style, flair, mood, override, prefs)
			}
			if !(mood < override && override < prefs) {
				t.Errorf("%v/%v: override not between mood and preferences", style, flair)
			}
		}
	}
}

func TestCompile_NoOverrideForOtherStyles(t *testing.T) {
	for _, style := range voice.AllCommunicationStyles() {
		if style == voice.Professional || style == voice.Direct {
			continue
		}
		for _, flair := range voice.AllToneFlairs() {
			p := voice.DefaultProfile()
			p.CommunicationStyle = style
			p.ToneFlair = flair
			if strings.Contains(Compile(p), assertiveOverride) {
				t.Errorf("%v/%v: unexpected style override", style, flair)
			}
		}
	}
}

func TestCompile_BlazeComposedForNonExecutiveStyle(t *testing.T) {
	p := voice.DefaultProfile()
	p.CommunicationStyle = voice.Bold
	p.ToneFlair = voice.Blaze

	out := Compile(p)
	if !strings.Contains(out, "## Current Mood: Blaze") {
		t.Error("missing Blaze mood heading")
	}
	if !strings.Contains(out, "- Sarcasm is essential.") {
		t.Error("missing Blaze bullets")
	}
	if strings.HasPrefix(out, "Blaze Mode") {
		t.Error("Bold style must not take the executive template")
	}
}

func TestCompile_ReferenceTruncation(t *testing.T) {
	p := voice.DefaultProfile()
	p.ReferenceText = strings.Repeat("a", 2500)

	out := Compile(p)
	_, block, ok := strings.Cut(out, referenceHeading+"\n")
	if !ok {
		t.Fatal("reference block missing")
	}
	if block != strings.Repeat("a", 2000) {
		t.Errorf("reference block has %d characters, want 2000", len(block))
	}
}

func TestCompile_ReferenceExactlyAtLimit(t *testing.T) {
	p := voice.DefaultProfile()
	p.ReferenceText = strings.Repeat("b", 2000)

	_, block, _ := strings.Cut(Compile(p), referenceHeading+"\n")
	if block != p.ReferenceText {
		t.Errorf("reference at the limit was altered: got %d characters", len(block))
	}
}

func TestCompile_ReferenceTruncationCountsRunes(t *testing.T) {
	p := voice.DefaultProfile()
	p.ReferenceText = strings.Repeat("é", 2100)

	_, block, _ := strings.Cut(Compile(p), referenceHeading+"\n")
	if got := []rune(block); len(got) != 2000 {
		t.Errorf("block has %d runes, want 2000", len(got))
	}
	if !strings.HasSuffix(block, "é") {
		t.Error("truncation split a multi-byte character")
	}
}

func TestCompile_EmptyReferenceOmitted(t *testing.T) {
	p := voice.Profile{
		CommunicationStyle: voice.Witty,
		ContentFormat:      voice.Analytical,
		Generation:         voice.Mixed,
		Length:             voice.Long,
		ToneFlair:          voice.Slash,
		ReferenceText:      "",
	}
	out := Compile(p)
	if !strings.Contains(out, "## Current Mood: Slash") {
		t.Error("missing Slash mood heading")
	}
	if strings.Contains(out, "Reference Material Provided") {
		t.Error("empty reference text produced a reference block")
	}
	if !strings.HasSuffix(out, lengthSuffix) {
		t.Errorf("output should end with the length line, got %q", lastLine(out))
	}
}

func TestCompile_Deterministic(t *testing.T) {
	for _, p := range allProfiles()[:200] {
		if a, b := Compile(p), Compile(p); a != b {
			t.Fatalf("%+v: outputs differ between calls", p)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"", 3, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"héllo", 2, "hé"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func lastLine(s string) string {
	return s[strings.LastIndex(s, "\n")+1:]
}
