package composer

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/brandvoice/internal/proxy"
	"github.com/kalambet/brandvoice/internal/voice"
)

// Composer puts the compiled voice instruction in front of chat requests.
type Composer struct {
	compile func(voice.Profile) string
}

// New creates a Composer backed by Compile.
func New() *Composer {
	return &Composer{compile: Compile}
}

// Messages returns the message list for one conversation turn: the compiled
// instruction as a system message, followed by history unchanged.
func (c *Composer) Messages(p voice.Profile, history []proxy.Message) []proxy.Message {
	out := make([]proxy.Message, 0, len(history)+1)
	out = append(out, proxy.Message{Role: "system", Content: c.compile(p)})
	return append(out, history...)
}

// Compose prepends the compiled instruction to an OpenAI-style request. If
// the request already starts with a system message, the instruction is
// prepended to its content: as text for string content, as a leading text
// part for content-part arrays. All other message fields are preserved.
func (c *Composer) Compose(req proxy.ChatRequest, p voice.Profile) (proxy.ChatRequest, error) {
	msgs, err := parseMessages(req.Messages)
	if err != nil {
		return req, fmt.Errorf("parsing messages: %w", err)
	}

	instruction := c.compile(p)

	if len(msgs) == 0 || getRole(msgs[0]) != "system" || !prependContent(msgs[0], instruction) {
		msgs = append([]rawMsg{makeSystemMessage(instruction)}, msgs...)
	}

	marshalled, err := json.Marshal(msgs)
	if err != nil {
		return req, fmt.Errorf("marshalling messages: %w", err)
	}

	out := req
	out.Messages = marshalled
	return out, nil
}

// rawMsg preserves all JSON fields on a message while allowing role/content access.
type rawMsg map[string]json.RawMessage

func parseMessages(data json.RawMessage) ([]rawMsg, error) {
	var msgs []rawMsg
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func getRole(m rawMsg) string {
	v, ok := m["role"]
	if !ok {
		return ""
	}
	var role string
	json.Unmarshal(v, &role)
	return role
}

func getContent(m rawMsg) string {
	v, ok := m["content"]
	if !ok {
		return ""
	}
	var content string
	json.Unmarshal(v, &content)
	return content
}

// prependContent puts instruction in front of m's content. It reports false
// when the content has a shape it cannot merge into.
func prependContent(m rawMsg, instruction string) bool {
	v, ok := m["content"]
	if !ok || string(v) == "null" {
		setContent(m, instruction)
		return true
	}

	var text string
	if err := json.Unmarshal(v, &text); err == nil {
		setContent(m, instruction+"\n\n---\n\n"+text)
		return true
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(v, &parts); err != nil {
		return false
	}
	lead, err := json.Marshal(map[string]string{"type": "text", "text": instruction})
	if err != nil {
		return false
	}
	merged, err := json.Marshal(append([]json.RawMessage{lead}, parts...))
	if err != nil {
		return false
	}
	m["content"] = merged
	return true
}

func setContent(m rawMsg, s string) {
	b, _ := json.Marshal(s)
	m["content"] = b
}

func makeSystemMessage(content string) rawMsg {
	m := make(rawMsg)
	m["role"], _ = json.Marshal("system")
	m["content"], _ = json.Marshal(content)
	return m
}
