package history

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptTemplate is a reusable starting point for the playground: a named
// system prompt plus an optional user text scaffold.
type PromptTemplate struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	System      string  `yaml:"system,omitempty"`
	Text        string  `yaml:"text,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// templateFile is the on-disk document shape.
type templateFile struct {
	Templates []PromptTemplate `yaml:"templates"`
}

// LoadTemplates reads prompt templates from a YAML file. A missing file is
// not an error; it yields no templates.
func LoadTemplates(path string) ([]PromptTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}

	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	out := make([]PromptTemplate, 0, len(doc.Templates))
	for _, tpl := range doc.Templates {
		if tpl.Name == "" {
			continue
		}
		out = append(out, tpl)
	}
	return out, nil
}
