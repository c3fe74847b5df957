package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type promptFile struct {
	Prompts map[string]string `yaml:"prompts"`
}

// LoadPrompts reads named prompt templates from a YAML file of the form:
//
//	prompts:
//	  legal: "Answer strictly from the contract excerpts. Question: "
//
// An empty path yields no templates.
func LoadPrompts(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]string{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var file promptFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	out := make(map[string]string, len(file.Prompts))
	for name, template := range file.Prompts {
		name = strings.TrimSpace(name)
		if name == "" || strings.TrimSpace(template) == "" {
			return nil, fmt.Errorf("parse prompts file %s: prompt %q is empty", path, name)
		}
		out[name] = template
	}
	return out, nil
}

// ResolvePrompt merges overrides over builtin and returns the template registered under name.
func ResolvePrompt(builtin, overrides map[string]string, name string) (string, error) {
	merged := make(map[string]string, len(builtin)+len(overrides))
	for k, v := range builtin {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	template, ok := merged[name]
	if !ok {
		return "", fmt.Errorf("prompt template %q is not defined", name)
	}
	return template, nil
}
