package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/brandvoice/internal/chat"
	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/profile"
	"github.com/kalambet/brandvoice/internal/voice"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Settings *profile.Manager
	Chat     *chat.Service
}

// NewMCPServer creates an MCP server with all brandvoice tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"brandvoice",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("brandvoice: compile a voice profile into writing instructions and chat in that voice."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("compile_instructions",
			append([]mcp.ToolOption{
				mcp.WithDescription("Compile a voice profile into system instructions. Omitted fields use the stored profile."),
				mcp.WithString("reference_text", mcp.Description("Reference material to include (truncated to 2000 characters); the stored reference document is used when omitted")),
			}, voiceToolOptions()...)...,
		),
		mcpCompileInstructions(deps),
	)

	s.AddTool(
		mcp.NewTool("set_voice",
			append([]mcp.ToolOption{
				mcp.WithDescription("Update the stored voice profile. Omitted fields are left unchanged."),
			}, voiceToolOptions()...)...,
		),
		mcpSetVoice(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a prompt and get a reply written in the stored voice."),
			mcp.WithString("prompt", mcp.Description("What to write"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Continue this conversation; a new one is started when omitted")),
		),
		mcpChat(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"voice://profile",
			"Voice Profile",
			mcp.WithResourceDescription("Current voice profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"voice://vocabulary",
			"Voice Vocabulary",
			mcp.WithResourceDescription("Every profile axis with its options and descriptions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceVocabulary,
	)

	return s
}

func optionKeys(axis string) []string {
	for _, a := range voice.Vocabulary() {
		if a.Name != axis {
			continue
		}
		keys := make([]string, len(a.Options))
		for i, o := range a.Options {
			keys[i] = o.Key
		}
		return keys
	}
	return nil
}

func voiceToolOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("communication_style", mcp.Description("Communication style"), mcp.Enum(optionKeys("communication_style")...)),
		mcp.WithString("content_format", mcp.Description("Content format"), mcp.Enum(optionKeys("content_format")...)),
		mcp.WithString("generation", mcp.Description("Target generation (the short name, e.g. \"Gen Z\", is accepted)")),
		mcp.WithString("length", mcp.Description("Content length"), mcp.Enum(optionKeys("length")...)),
		mcp.WithNumber("tone_slider", mcp.Description("Tone intensity 0-100: below 33 is Nip, below 66 is Slash, otherwise Blaze"), mcp.Min(0), mcp.Max(100)),
		mcp.WithBoolean("ultra_direct", mcp.Description("Blunt, unembellished output; overrides style and tone")),
	}
}

// voicePatch reads the voice arguments present in req.
func voicePatch(req mcp.CallToolRequest) (profile.Patch, error) {
	args := req.GetArguments()
	var p profile.Patch

	if _, ok := args["communication_style"]; ok {
		v, err := voice.ParseCommunicationStyle(req.GetString("communication_style", ""))
		if err != nil {
			return p, err
		}
		p.CommunicationStyle = &v
	}
	if _, ok := args["content_format"]; ok {
		v, err := voice.ParseContentFormat(req.GetString("content_format", ""))
		if err != nil {
			return p, err
		}
		p.ContentFormat = &v
	}
	if _, ok := args["generation"]; ok {
		v, err := voice.ParseGeneration(req.GetString("generation", ""))
		if err != nil {
			return p, err
		}
		p.Generation = &v
	}
	if _, ok := args["length"]; ok {
		v, err := voice.ParseLength(req.GetString("length", ""))
		if err != nil {
			return p, err
		}
		p.Length = &v
	}
	if _, ok := args["tone_slider"]; ok {
		v := req.GetInt("tone_slider", voice.DefaultSlider)
		p.ToneSlider = &v
	}
	if _, ok := args["ultra_direct"]; ok {
		v := req.GetBool("ultra_direct", false)
		p.UltraDirect = &v
	}
	return p, nil
}

func mcpCompileInstructions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patch, err := voicePatch(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		base := profile.DefaultSettings()
		if deps.Settings != nil {
			if base, err = deps.Settings.GetSettings(); err != nil {
				return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
			}
		}

		refText, err := mcpReferenceText(deps, req)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load reference document: %v", err)), nil
		}

		p := base.Apply(patch).Profile(refText)
		return mcpText(composer.Compile(p)), nil
	}
}

// mcpReferenceText returns the reference_text argument, or the stored
// reference document's text when the argument is omitted.
func mcpReferenceText(deps MCPDeps, req mcp.CallToolRequest) (string, error) {
	if _, ok := req.GetArguments()["reference_text"]; ok || deps.Chat == nil {
		return req.GetString("reference_text", ""), nil
	}
	p, err := deps.Chat.Profile()
	if err != nil {
		return "", err
	}
	return p.ReferenceText, nil
}

func mcpSetVoice(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patch, err := voicePatch(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if patch.Empty() {
			return mcpError("no voice fields given"), nil
		}

		s, err := deps.Settings.Update(patch)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update profile: %v", err)), nil
		}

		b, err := json.Marshal(s)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

type mcpChatResult struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Failed         bool   `json:"failed,omitempty"`
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		id := req.GetString("conversation_id", "")
		if id == "" {
			c, err := deps.Chat.Start(ctx, "")
			if err != nil {
				return mcpError(fmt.Sprintf("failed to start conversation: %v", err)), nil
			}
			id = c.ID
		}

		reply, err := deps.Chat.Send(ctx, id, prompt)
		if errors.Is(err, chat.ErrBusy) || errors.Is(err, chat.ErrEmptyPrompt) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		b, err := json.Marshal(mcpChatResult{ConversationID: id, Reply: reply.Content, Failed: reply.Failed})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s, err := deps.Settings.GetSettings()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		return jsonResource(req.Params.URI, s)
	}
}

func mcpResourceVocabulary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, voice.Vocabulary())
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
