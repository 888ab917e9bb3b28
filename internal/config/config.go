package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models fieldbook.yml.
type Config struct {
	Workspace struct {
		Name string `yaml:"name"`
	} `yaml:"workspace"`
	Playbook struct {
		// Sections lists section types in presentation order. The set is fixed
		// per playbook at creation time.
		Sections []string                 `yaml:"sections"`
		Types    map[string]SectionPolicy `yaml:"types"`
	} `yaml:"playbook"`
	Generation struct {
		Model       string `yaml:"model"`
		MaxTokens   int    `yaml:"max_tokens"`
		Concurrency int    `yaml:"concurrency"`
		Limit       struct {
			MaxPlaybooks  int `yaml:"max_playbooks"`
			WindowMinutes int `yaml:"window_minutes"`
		} `yaml:"limit"`
	} `yaml:"generation"`
}

// SectionPolicy is the per-section-type generation policy.
type SectionPolicy struct {
	Title string `yaml:"title"`
	// Retryable gates regeneration. Derived sections are rebuilt with their
	// playbook, never independently.
	Retryable *bool `yaml:"retryable"`
	// Source is the content provenance tag stamped on completion.
	Source string `yaml:"source"`
	// Backend selects the generation path: "generator" or "composer".
	Backend string `yaml:"backend"`
	Prompt  string `yaml:"prompt"`
}

func (p SectionPolicy) IsRetryable() bool {
	if p.Retryable == nil {
		return true
	}
	return *p.Retryable
}

// SectionPolicyFor returns the policy for a section type, falling back to a
// retryable generator-backed synthesis policy for unknown types.
func (c *Config) SectionPolicyFor(sectionType string) SectionPolicy {
	if p, ok := c.Playbook.Types[sectionType]; ok {
		return p
	}
	return SectionPolicy{Source: "synthesis", Backend: "generator"}
}

// LimitWindow returns the rate-limit window as a duration.
func (c *Config) LimitWindow() time.Duration {
	return time.Duration(c.Generation.Limit.WindowMinutes) * time.Minute
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workspace.Name == "" {
		return fmt.Errorf("config.workspace.name is required")
	}
	if len(c.Playbook.Sections) == 0 {
		return fmt.Errorf("config.playbook.sections is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Playbook.Sections {
		if s == "" {
			return fmt.Errorf("config.playbook.sections contains empty type")
		}
		if seen[s] {
			return fmt.Errorf("config.playbook.sections has duplicate type %s", s)
		}
		seen[s] = true
	}
	for name, policy := range c.Playbook.Types {
		if !seen[name] {
			return fmt.Errorf("config.playbook.types defines unknown section type %s", name)
		}
		switch policy.Backend {
		case "", "generator", "composer":
		default:
			return fmt.Errorf("section type %s has invalid backend %s", name, policy.Backend)
		}
		switch policy.Source {
		case "", "verbatim", "constrained", "synthesis", "hybrid":
		default:
			return fmt.Errorf("section type %s has invalid source %s", name, policy.Source)
		}
	}
	if c.Generation.Limit.MaxPlaybooks < 0 {
		return fmt.Errorf("config.generation.limit.max_playbooks must be >= 0")
	}
	if c.Generation.Limit.MaxPlaybooks > 0 && c.Generation.Limit.WindowMinutes <= 0 {
		return fmt.Errorf("config.generation.limit.window_minutes must be > 0 when a limit is set")
	}
	if c.Generation.Concurrency < 0 {
		return fmt.Errorf("config.generation.concurrency must be >= 0")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "fieldbook.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create with fb init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default("fieldbook"), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

// Default returns the default Config struct for a workspace.
func Default(name string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, name))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `workspace:
  name: %s

playbook:
  sections: [key_themes, product_fit, objections, stakeholders, district_data, fit_assessment]

  types:
    key_themes:
      title: "Key Themes"
      source: synthesis
      backend: generator
      prompt: "Summarize the strategic themes that matter to this district and how the offered products speak to them."
    product_fit:
      title: "Product Fit"
      source: hybrid
      backend: generator
      prompt: "Explain how each offered product fits this district's stated priorities and constraints."
    objections:
      title: "Likely Objections"
      source: synthesis
      backend: generator
      prompt: "List the objections this district is likely to raise and concrete responses to each."
    stakeholders:
      title: "Stakeholders"
      source: constrained
      backend: generator
      prompt: "Describe the decision makers and influencers typical for a district of this size and how to approach them."
    district_data:
      title: "District Data"
      source: verbatim
      backend: composer
    fit_assessment:
      title: "Fit Assessment"
      source: verbatim
      backend: composer
      retryable: false

generation:
  model: gpt-4o-mini
  max_tokens: 2048
  concurrency: 4
  limit:
    max_playbooks: 10
    window_minutes: 60
`
