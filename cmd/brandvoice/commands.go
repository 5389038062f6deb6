package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/brandvoice/internal/config"
	"github.com/kalambet/brandvoice/internal/export"
	"github.com/kalambet/brandvoice/internal/reference"
	"github.com/kalambet/brandvoice/internal/storage"
	"github.com/kalambet/brandvoice/internal/voice"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the voice profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current voice profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Set a voice profile field",
	Long: `Set a voice profile field.

Fields: communication_style, content_format, generation, length,
tone_slider (0-100), ultra_direct (true/false).

Examples:
  brandvoice profile set communication_style Witty
  brandvoice profile set generation "Gen Z"
  brandvoice profile set tone_slider 80`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := profilePatchBody(args[0], args[1])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/profile", body)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %v", args[0], body[args[0]])
		if flair, ok := result["tone_flair"]; ok && args[0] == "tone_slider" {
			printStatus("Tone flair", "%v", flair)
		}
		return nil
	},
}

// profilePatchBody validates one field assignment and converts the value to
// the JSON type PATCH /profile expects.
func profilePatchBody(field, value string) (map[string]any, error) {
	var v any
	var err error
	switch field {
	case "communication_style":
		v, err = voice.ParseCommunicationStyle(value)
	case "content_format":
		v, err = voice.ParseContentFormat(value)
	case "generation":
		v, err = voice.ParseGeneration(value)
	case "length":
		v, err = voice.ParseLength(value)
	case "tone_slider":
		v, err = strconv.Atoi(value)
		if err != nil {
			err = fmt.Errorf("tone_slider must be an integer between 0 and 100")
		}
	case "ultra_direct":
		v, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("ultra_direct must be true or false")
		}
	default:
		return nil, fmt.Errorf("unknown profile field %q", field)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{field: v}, nil
}

var profileOptionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List every profile field with its allowed values",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, axis := range voice.Vocabulary() {
			fmt.Printf("\n%s (%s)\n", colorize(colorBold, axis.Label), axis.Name)
			fmt.Printf("  %s\n", axis.Hint)
			for _, o := range axis.Options {
				fmt.Printf("  %s  %s\n", colorize(colorCyan, o.Key), o.Description)
			}
		}
		fmt.Printf("\nTone flair is derived from tone_slider (0-100, default %d).\n", voice.DefaultSlider)
		return nil
	},
}

var profileInstructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Print the instructions compiled from the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile/instructions")
		if err != nil {
			return err
		}

		var result struct {
			ToneFlair    string `json:"tone_flair"`
			Instructions string `json:"instructions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Instructions)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileOptionsCmd)
	profileCmd.AddCommand(profileInstructionsCmd)
}

// --- reference ---

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Attach or remove the reference document",
	Long:  "Attach or remove the reference document.\n\n" + voice.ReferenceHint,
}

var referenceUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a reference document (" + strings.Join(reference.SupportedExtensions(), ", ") + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.upload(cmd.Context(), "/reference", filepath.Base(args[0]), data)
		if err != nil {
			return err
		}

		var result struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			Chars    int    `json:"chars"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Attached %s (%d characters extracted)", result.Filename, result.Chars)
		return nil
	},
}

var referenceRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Detach the reference document",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/reference")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Reference document removed")
		return nil
	},
}

func init() {
	referenceCmd.AddCommand(referenceUploadCmd)
	referenceCmd.AddCommand(referenceRemoveCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Send a prompt and print the reply in your voice",
	Long: `Send a prompt and print the reply in your voice.

A new conversation is started unless --conversation is given.

Examples:
  brandvoice chat "Write a launch email for our new app"
  brandvoice chat -c 3f2a... "Make it shorter"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.TrimSpace(strings.Join(args, " "))
		if prompt == "" {
			return fmt.Errorf("prompt is required")
		}
		id, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if id == "" {
			resp, err := client.post(cmd.Context(), "/conversations", map[string]string{})
			if err != nil {
				return err
			}
			var c storage.Conversation
			if err := decodeJSON(resp, &c); err != nil {
				return err
			}
			id = c.ID
		}

		resp, err := client.post(cmd.Context(), "/conversations/"+id+"/messages", map[string]string{"prompt": prompt})
		if err != nil {
			return err
		}
		var reply storage.Message
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}

		fmt.Println(reply.Content)
		if reply.Failed {
			printWarning("the model did not answer; try again")
		}
		printStatus("Conversation", "%s", id)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringP("conversation", "c", "", "continue an existing conversation")
}

// --- conversations ---

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/conversations?limit=%d", limit))
		if err != nil {
			return err
		}

		var convs []storage.Conversation
		if err := decodeJSON(resp, &convs); err != nil {
			return err
		}

		if len(convs) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range convs {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, shortID(c.ID)),
				c.UpdatedAt.Local().Format("2006-01-02 15:04"),
				title,
			)
		}
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}

		var conv struct {
			storage.Conversation
			Messages []storage.Message `json:"messages"`
		}
		if err := decodeJSON(resp, &conv); err != nil {
			return err
		}

		fmt.Println(colorize(colorBold, conv.Title))
		for _, m := range conv.Messages {
			printMessage(m)
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", shortID(args[0]))
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	conversationsListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Save the latest reply of a conversation as a file",
	Long: `Save the latest reply of a conversation as a file.

The file is named after the first two words of the prompt and today's date,
for example Launch_email_15Oct2026.txt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		dir, _ := cmd.Flags().GetString("output")

		if format != export.FormatText && format != export.FormatDoc {
			return fmt.Errorf("unknown format %q: use %s or %s", format, export.FormatText, export.FormatDoc)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path, err := exportReply(cmd.Context(), client, args[0], format, dir)
		if err != nil {
			return err
		}

		printSuccess("Saved %s", path)
		return nil
	},
}

func exportReply(ctx context.Context, client *apiClient, id, format, dir string) (string, error) {
	name, body, err := client.download(ctx, "/conversations/"+id+"/export?format="+format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

func init() {
	exportCmd.Flags().String("format", export.FormatText, "file format: txt or doc")
	exportCmd.Flags().StringP("output", "o", ".", "directory to write the file to")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
