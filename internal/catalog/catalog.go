package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog lists the model/speech providers an agent config may reference and
// the hard defaults used when neither the caller nor a previous version
// supplies a value.
type Catalog struct {
	LLM      []LLMProvider `yaml:"llm"`
	STT      []STTProvider `yaml:"stt"`
	TTS      []TTSProvider `yaml:"tts"`
	Defaults Defaults      `yaml:"defaults"`
}

type LLMProvider struct {
	Name   string   `yaml:"name"`
	Models []string `yaml:"models"`
}

type STTProvider struct {
	Name      string   `yaml:"name"`
	Languages []string `yaml:"languages"`
	Qualities []string `yaml:"qualities"`
}

type TTSProvider struct {
	Name   string   `yaml:"name"`
	Voices []string `yaml:"voices"`
}

type Defaults struct {
	Prompt         string  `yaml:"prompt"`
	LLMProvider    string  `yaml:"llm_provider"`
	LLMModel       string  `yaml:"llm_model"`
	Temperature    float64 `yaml:"temperature"`
	ResponseLength string  `yaml:"response_length"`
	STTProvider    string  `yaml:"stt_provider"`
	STTLanguage    string  `yaml:"stt_language"`
	STTQuality     string  `yaml:"stt_quality"`
	TTSProvider    string  `yaml:"tts_provider"`
	TTSVoice       string  `yaml:"tts_voice"`
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		raw = b
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.Defaults.LLMProvider == "" || c.Defaults.STTProvider == "" || c.Defaults.TTSProvider == "" {
		return nil, fmt.Errorf("catalog defaults incomplete")
	}
	return &c, nil
}

func (c *Catalog) HasLLM(provider, model string) bool {
	for _, p := range c.LLM {
		if p.Name != provider {
			continue
		}
		if model == "" {
			return true
		}
		for _, m := range p.Models {
			if m == model {
				return true
			}
		}
	}
	return false
}

func (c *Catalog) HasSTT(provider string) bool {
	for _, p := range c.STT {
		if p.Name == provider {
			return true
		}
	}
	return false
}

func (c *Catalog) HasTTS(provider, voice string) bool {
	for _, p := range c.TTS {
		if p.Name != provider {
			continue
		}
		if voice == "" {
			return true
		}
		for _, v := range p.Voices {
			if v == voice {
				return true
			}
		}
	}
	return false
}
