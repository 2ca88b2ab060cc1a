// Package rules implements the rule file parser collaborator (spec §6
// "Rule file parser"): loading compliance rules from JSON/YAML files
// into the {id, name, description, category, severity, patterns[],
// filePatterns[], keywords[], regulation?, remediation?} shape
// pkg/agents.Rule already defines. Grounded on gopkg.in/yaml.v3 for the
// YAML side (the teacher's own config package uses it) and the
// standard library's encoding/json for the JSON side, since no
// third-party JSON library appears anywhere in the retrieval pack.
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omnicore/agentrt/pkg/agents"
)

// ruleFile is the on-disk shape of a single rule entry, decoded with
// both yaml and json tags so one struct serves both formats.
type ruleFile struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Category     string   `yaml:"category" json:"category"`
	Severity     string   `yaml:"severity" json:"severity"`
	Regulation   string   `yaml:"regulation" json:"regulation"`
	Patterns     []string `yaml:"patterns" json:"patterns"`
	FilePatterns []string `yaml:"filePatterns" json:"filePatterns"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
	Remediation  string   `yaml:"remediation" json:"remediation"`
}

// ruleFileSet is the top-level document shape: either a bare list of
// rules or {"rules": [...]}. Both forms appear across the pack's
// config-style files, so both are accepted.
type ruleFileSet struct {
	Rules []ruleFile `yaml:"rules" json:"rules"`
}

// Loader implements agents.RuleLoader, reading every .yaml/.yml/.json
// file in the configured directories.
type Loader struct{}

func New() *Loader { return &Loader{} }

// LoadRules implements agents.RuleLoader. A directory that does not
// exist is skipped rather than treated as an error (spec §4.F "an
// empty rule set is legal and produces zero findings, not an error").
func (l *Loader) LoadRules(ctx context.Context, dirs []string) ([]agents.Rule, error) {
	var out []agents.Rule
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rules: read dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			parsed, err := parseFile(path, ext)
			if err != nil {
				return nil, fmt.Errorf("rules: %s: %w", path, err)
			}
			out = append(out, parsed...)
		}
	}
	return out, nil
}

func parseFile(path, ext string) ([]agents.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var set ruleFileSet
	switch ext {
	case ".json":
		// A bare JSON array is also accepted by trying that shape first.
		var list []ruleFile
		if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
			set.Rules = list
		} else if err := json.Unmarshal(data, &set); err != nil {
			return nil, err
		}
	default:
		var list []ruleFile
		if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
			set.Rules = list
		} else if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, err
		}
	}

	out := make([]agents.Rule, 0, len(set.Rules))
	for _, rf := range set.Rules {
		out = append(out, agents.Rule{
			ID:           rf.ID,
			Name:         rf.Name,
			Description:  rf.Description,
			Category:     rf.Category,
			Severity:     rf.Severity,
			Regulation:   rf.Regulation,
			Patterns:     rf.Patterns,
			FilePatterns: rf.FilePatterns,
			Keywords:     rf.Keywords,
			Remediation:  rf.Remediation,
		})
	}
	return out, nil
}

var _ agents.RuleLoader = (*Loader)(nil)
