package story

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"chickmaster/internal/content"
	"chickmaster/internal/metric"
)

//go:embed pattern.schema.json
var patternSchema string

type patternFile struct {
	Patterns []Pattern `json:"patterns" yaml:"patterns"`
}

// DecodePatterns validates a JSON pattern catalog against the embedded
// schema and returns its patterns.
func DecodePatterns(raw []byte) ([]Pattern, error) {
	s, err := jsonschema.CompileString("pattern.schema.json", patternSchema)
	if err != nil {
		return nil, fmt.Errorf("compile pattern schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, err
	}

	var f patternFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return finish(f.Patterns)
}

// DecodePatternsYAML reads the same catalog shape from YAML.
func DecodePatternsYAML(raw []byte) ([]Pattern, error) {
	var f patternFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return finish(f.Patterns)
}

// DefaultPatterns returns the built-in pattern catalog.
func DefaultPatterns() ([]Pattern, error) {
	return DecodePatterns(content.Patterns())
}

// LoadPatterns reads a .json, .yaml or .yml catalog file.
func LoadPatterns(path string) ([]Pattern, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ps []Pattern
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ps, err = DecodePatternsYAML(b)
	default:
		ps, err = DecodePatterns(b)
	}
	if err != nil {
		return nil, fmt.Errorf("patterns %s: %w", filepath.Base(path), err)
	}
	return ps, nil
}

func finish(ps []Pattern) ([]Pattern, error) {
	seen := make(map[string]bool, len(ps))
	for i := range ps {
		p := &ps[i]
		p.Trigger.Metric = metric.Metric(strings.ToUpper(string(p.Trigger.Metric)))
		for j := range p.Effects {
			p.Effects[j].Metric = metric.Metric(strings.ToUpper(string(p.Effects[j].Metric)))
		}
		for j := range p.RelatedMetrics {
			p.RelatedMetrics[j] = metric.Metric(strings.ToUpper(string(p.RelatedMetrics[j])))
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate pattern id %s", p.ID)
		}
		seen[p.ID] = true
	}
	return ps, nil
}
