// Package branding carries the clinic identity used in the live system
// instruction and in persisted intakes.
package branding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	yaml "go.yaml.in/yaml/v2"
)

const (
	StyleWarm         = "warm"
	StyleProfessional = "professional"
	StyleFriendly     = "friendly"
)

// Voices are the prebuilt Live voices accepted by the gateway.
var Voices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede"}

func IsValidVoice(voice string) bool {
	return slices.Contains(Voices, voice)
}

type Branding struct {
	ClinicName    string `yaml:"clinic_name" json:"clinic_name"`
	Specialty     string `yaml:"specialty" json:"specialty"`
	GreetingStyle string `yaml:"greeting_style" json:"greeting_style"`
	VoiceModel    string `yaml:"voice_model" json:"voice_model"`
}

func Default() Branding {
	return Branding{
		ClinicName:    "Medical Center",
		Specialty:     "Primary Care",
		GreetingStyle: StyleWarm,
		VoiceModel:    "Puck",
	}
}

// Label is the "<clinic> - <specialty>" form stored with each intake.
func (b Branding) Label() string {
	return b.ClinicName + " - " + b.Specialty
}

// LoadFile reads a YAML or JSON branding file and overlays its non-empty
// values on base. Files without a .json, .yaml or .yml extension are tried as
// YAML first, then JSON.
func LoadFile(path string, base Branding) (Branding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read branding file: %w", err)
	}

	var file Branding
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return base, fmt.Errorf("parse json branding: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return base, fmt.Errorf("parse yaml branding: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal(data, &file); yerr != nil {
			if jerr := json.Unmarshal(data, &file); jerr != nil {
				return base, fmt.Errorf("unsupported branding format: %s", ext)
			}
		}
	}
	return overlay(base, file), nil
}

func overlay(base, file Branding) Branding {
	out := base
	if v := strings.TrimSpace(file.ClinicName); v != "" {
		out.ClinicName = v
	}
	if v := strings.TrimSpace(file.Specialty); v != "" {
		out.Specialty = v
	}
	if v := strings.TrimSpace(file.GreetingStyle); v != "" {
		out.GreetingStyle = strings.ToLower(v)
	}
	if v := strings.TrimSpace(file.VoiceModel); v != "" {
		out.VoiceModel = v
	}
	return out
}
