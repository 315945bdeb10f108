package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version   string    `yaml:"version" json:"version"`
	SeededRNG SeededRNG `yaml:"seeded_rng" json:"seeded_rng"`
	// Difficulty picks the preset Balance is layered on: "", "casual" or "hard".
	Difficulty string   `yaml:"difficulty" json:"difficulty"`
	Balance    Balance  `yaml:"balance" json:"balance"`
	Settings   Settings `yaml:"settings" json:"settings"`
	Content    Content  `yaml:"content" json:"content"`
}

type SeededRNG struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

type Content struct {
	EventsDir    string `yaml:"events_dir" json:"events_dir"`
	PatternsFile string `yaml:"patterns_file" json:"patterns_file"`
}

func preset(name string) Balance {
	switch name {
	case "casual":
		return Casual()
	case "hard":
		return Hard()
	}
	return Default()
}

func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
}

// Load reads a YAML config file. Balance fields the file leaves out keep
// the values of the selected difficulty preset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var head struct {
		Difficulty string `yaml:"difficulty"`
	}
	if err := yaml.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r := Config{Balance: preset(head.Difficulty)}
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.ApplyDefaults()
	if err := r.Balance.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Settings.Check(r.Balance); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}
