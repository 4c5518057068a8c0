package prompt

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompt is a stored text template used to build LLM input
type Prompt struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Text        string `yaml:"prompt" json:"text"`
	Source      string `yaml:"-" json:"source,omitempty"`
}

// promptFile is the on-disk YAML form, accepting the legacy key names
type promptFile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
	Content     string `yaml:"content"`
}

// yamlExtensions and textExtensions are tried in this order when resolving an id
var (
	yamlExtensions = []string{".yaml", ".yml"}
	textExtensions = []string{".txt", ".tmpl", ".md", ""}
)

// Parse builds a Prompt from a stored object. YAML files are decoded, anything else is plain text.
func Parse(id, name string, data []byte) (*Prompt, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".yaml" || ext == ".yml" {
		return parseYAML(id, name, data)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("prompt %s is empty", name)
	}
	return &Prompt{ID: id, Text: text, Source: name}, nil
}

func parseYAML(id, name string, data []byte) (*Prompt, error) {
	var file promptFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
	}

	p := &Prompt{
		ID:          firstNonEmpty(file.ID, file.Name, id),
		Description: strings.TrimSpace(file.Description),
		Text:        strings.TrimSpace(firstNonEmpty(file.Prompt, file.Content)),
		Source:      name,
	}
	if p.Text == "" {
		return nil, fmt.Errorf("prompt %s has no prompt or content field", name)
	}
	return p, nil
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes {name} placeholders with vars. Unknown placeholders are left in place.
func (p *Prompt) Render(vars map[string]string) string {
	if len(vars) == 0 {
		return p.Text
	}
	return placeholder.ReplaceAllStringFunc(p.Text, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := vars[key]; ok {
			return value
		}
		return match
	})
}

// Variables returns the distinct placeholder names in the prompt, sorted
func (p *Prompt) Variables() []string {
	seen := map[string]bool{}
	var names []string
	for _, match := range placeholder.FindAllStringSubmatch(p.Text, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	sort.Strings(names)
	return names
}

// candidates lists the object names an id may be stored under, in lookup order
func candidates(id string) []string {
	if ext := strings.ToLower(path.Ext(id)); ext != "" {
		for _, known := range append(append([]string{}, yamlExtensions...), textExtensions...) {
			if known != "" && ext == known {
				return []string{id}
			}
		}
	}

	names := make([]string, 0, len(yamlExtensions)+len(textExtensions))
	for _, ext := range yamlExtensions {
		names = append(names, id+ext)
	}
	for _, ext := range textExtensions {
		names = append(names, id+ext)
	}
	return names
}

// idFromName strips a known extension from an object name
func idFromName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	for _, known := range append(append([]string{}, yamlExtensions...), textExtensions...) {
		if known != "" && ext == known {
			return strings.TrimSuffix(name, name[len(name)-len(ext):])
		}
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
