package prompt

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Preset bundles the analysis instruction with its sampling parameters.
type Preset struct {
	System      string  `yaml:"system"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

// defaultSystem asks for a chain-of-thought narrative followed by the coding
// JSON. The reply shape ({"themes":[{"theme","codages","verbatims"}]}) is
// what the extractor and row builder expect downstream.
const defaultSystem = `Tu es un sociologue expert. ` +
	`Avant de proposer ta codification, expose étape par étape ta réflexion (chain of thought) : ` +
	`comment tu repères les thématiques principales, comment tu structures les sous-thèmes, ` +
	`et comment tu extrais les éléments saillants. ` +
	`Ensuite, donne la codification finale au format JSON suivant : {
  "themes": [
    {
      "theme": "Nom du thème",
      "codages": ["codage1", ..., "codage10"],
      "verbatims": ["verbatim1", ...]
    },
    ...
  ]
}`

// Default returns the built-in thematic coding preset. Low temperature keeps
// the reply structure stable across calls.
func Default() Preset {
	return Preset{
		System:      defaultSystem,
		Model:       "claude-haiku-4-5-20251001",
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Load reads a preset from a YAML file. Keys absent from the file inherit
// from base.
func Load(path string, base Preset) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, eris.Wrapf(err, "prompt: read preset %s", path)
	}

	// Unmarshal over the base so unset keys inherit.
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, eris.Wrap(err, "prompt: parse preset")
	}

	return p, nil
}
