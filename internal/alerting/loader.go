package alerting

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

// RulesConfig is the top-level YAML rules file.
type RulesConfig struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the YAML shape of one seeded alert rule.
type RuleSpec struct {
	Name            string           `yaml:"name"`
	Description     string           `yaml:"description,omitempty"`
	Condition       models.Condition `yaml:"condition"`
	Channels        []models.Channel `yaml:"channels,omitempty"`
	Severity        string           `yaml:"severity,omitempty"`
	MessageTemplate string           `yaml:"message,omitempty"`
	CooldownMinutes int              `yaml:"cooldown_minutes,omitempty"`
	Enabled         *bool            `yaml:"enabled,omitempty"`
}

// LoadRulesFromFile loads alert rules from a YAML file.
func LoadRulesFromFile(path string) ([]*models.AlertRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f)
}

// LoadRules loads and validates alert rules from a reader.
func LoadRules(r io.Reader) ([]*models.AlertRule, error) {
	var config RulesConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	rules := make([]*models.AlertRule, 0, len(config.Rules))
	for i, spec := range config.Rules {
		rule := &models.AlertRule{
			Name:            spec.Name,
			Description:     spec.Description,
			Condition:       spec.Condition,
			Channels:        spec.Channels,
			Severity:        models.ParseSeverity(spec.Severity),
			MessageTemplate: spec.MessageTemplate,
			CooldownMinutes: spec.CooldownMinutes,
			Enabled:         spec.Enabled == nil || *spec.Enabled,
		}
		if err := ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
