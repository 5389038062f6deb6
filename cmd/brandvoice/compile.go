package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/brandvoice/internal/composer"
	"github.com/kalambet/brandvoice/internal/profile"
	"github.com/kalambet/brandvoice/internal/reference"
	"github.com/kalambet/brandvoice/internal/voice"
)

// profileFile is the YAML form of a voice profile. Every field is optional;
// missing fields keep their defaults.
//
//	communication_style: Witty
//	content_format: Action List
//	generation: Gen Z
//	length: Short
//	tone_slider: 80
//	ultra_direct: false
//	reference: ./brand-book.pdf
type profileFile struct {
	CommunicationStyle string `yaml:"communication_style"`
	ContentFormat      string `yaml:"content_format"`
	Generation         string `yaml:"generation"`
	Length             string `yaml:"length"`
	ToneSlider         *int   `yaml:"tone_slider"`
	UltraDirect        *bool  `yaml:"ultra_direct"`
	Reference          string `yaml:"reference"`
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Print the instructions for a voice profile without a server",
	Long: `Print the instructions for a voice profile without a server.

The profile is read from --file (YAML) and/or flags; flags win. Unset
fields use the defaults shown by "brandvoice profile options".

Examples:
  brandvoice compile --style Witty --generation "Gen Z" --tone 80
  brandvoice compile --file voice.yaml --length Long`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var pf profileFile
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			var err error
			if pf, err = loadProfileFile(path); err != nil {
				return err
			}
			// A relative reference path is resolved against the profile file.
			if pf.Reference != "" && !filepath.IsAbs(pf.Reference) {
				pf.Reference = filepath.Join(filepath.Dir(path), pf.Reference)
			}
		}

		flags := cmd.Flags()
		if flags.Changed("style") {
			pf.CommunicationStyle, _ = flags.GetString("style")
		}
		if flags.Changed("format") {
			pf.ContentFormat, _ = flags.GetString("format")
		}
		if flags.Changed("generation") {
			pf.Generation, _ = flags.GetString("generation")
		}
		if flags.Changed("length") {
			pf.Length, _ = flags.GetString("length")
		}
		if flags.Changed("tone") {
			v, _ := flags.GetInt("tone")
			pf.ToneSlider = &v
		}
		if flags.Changed("ultra-direct") {
			v, _ := flags.GetBool("ultra-direct")
			pf.UltraDirect = &v
		}
		if flags.Changed("reference") {
			pf.Reference, _ = flags.GetString("reference")
		}

		p, err := buildProfile(pf)
		if err != nil {
			return err
		}
		fmt.Println(composer.Compile(p))
		return nil
	},
}

func init() {
	compileCmd.Flags().StringP("file", "f", "", "YAML voice profile")
	compileCmd.Flags().String("style", "", "communication style")
	compileCmd.Flags().String("format", "", "content format")
	compileCmd.Flags().String("generation", "", "target generation")
	compileCmd.Flags().String("length", "", "content length")
	compileCmd.Flags().Int("tone", voice.DefaultSlider, "tone slider 0-100")
	compileCmd.Flags().Bool("ultra-direct", false, "ultra-direct mode")
	compileCmd.Flags().String("reference", "", "reference document to include")
}

func loadProfileFile(path string) (profileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return profileFile{}, fmt.Errorf("reading profile file: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return profileFile{}, fmt.Errorf("parsing profile file %s: %w", path, err)
	}
	return pf, nil
}

// buildProfile turns pf into a complete profile, reading and extracting the
// reference document when one is named.
func buildProfile(pf profileFile) (voice.Profile, error) {
	var patch profile.Patch

	if pf.CommunicationStyle != "" {
		v, err := voice.ParseCommunicationStyle(pf.CommunicationStyle)
		if err != nil {
			return voice.Profile{}, err
		}
		patch.CommunicationStyle = &v
	}
	if pf.ContentFormat != "" {
		v, err := voice.ParseContentFormat(pf.ContentFormat)
		if err != nil {
			return voice.Profile{}, err
		}
		patch.ContentFormat = &v
	}
	if pf.Generation != "" {
		v, err := voice.ParseGeneration(pf.Generation)
		if err != nil {
			return voice.Profile{}, err
		}
		patch.Generation = &v
	}
	if pf.Length != "" {
		v, err := voice.ParseLength(pf.Length)
		if err != nil {
			return voice.Profile{}, err
		}
		patch.Length = &v
	}
	patch.ToneSlider = pf.ToneSlider
	patch.UltraDirect = pf.UltraDirect

	var refText string
	if pf.Reference != "" {
		printStep("Reading reference %s", pf.Reference)
		data, err := os.ReadFile(pf.Reference)
		if err != nil {
			return voice.Profile{}, fmt.Errorf("reading reference: %w", err)
		}
		if len(data) > reference.MaxUploadBytes {
			return voice.Profile{}, fmt.Errorf("reference exceeds %d bytes", reference.MaxUploadBytes)
		}
		if refText, err = reference.Extract(pf.Reference, data); err != nil {
			return voice.Profile{}, err
		}
	}

	return profile.DefaultSettings().Apply(patch).Profile(refText), nil
}
