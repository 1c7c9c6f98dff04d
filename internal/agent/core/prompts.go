package core

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researchbot/models"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/responses.yaml
var responsesYAML []byte

//go:embed prompts/templates.yaml
var templatesYAML []byte

type fixedResponse struct {
	Intent     string            `yaml:"intent"`
	Confidence models.Confidence `yaml:"confidence"`
	Answer     string            `yaml:"answer"`
	KeyPoints  []string          `yaml:"key_points"`
}

type templateSection struct {
	Name     string `yaml:"name"`
	Note     string `yaml:"note"`
	Guidance string `yaml:"guidance"`
}

type queryTemplate struct {
	Label    string            `yaml:"label"`
	Sections []templateSection `yaml:"sections"`
	Freeform string            `yaml:"freeform"`
}

type synthesisPrompts struct {
	System       string                      `yaml:"system"`
	Instructions string                      `yaml:"instructions"`
	Closing      string                      `yaml:"closing"`
	Types        map[QueryType]queryTemplate `yaml:"types"`
}

var (
	fixedResponses = mustDecode[map[string]fixedResponse](responsesYAML, "responses")
	prompts        = mustDecode[synthesisPrompts](templatesYAML, "templates")
)

func mustDecode[T any](data []byte, name string) T {
	var out T
	if err := yaml.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("core: decode embedded %s: %v", name, err))
	}
	return out
}

// structure renders the section layout requested for a query type.
func (t queryTemplate) structure() string {
	if t.Freeform != "" {
		return "STRUCTURE " + t.Label + ":\n" + t.Freeform
	}
	parts := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		head := "**" + s.Name + "**"
		if s.Note != "" {
			head += " " + s.Note
		}
		parts = append(parts, head+"\n"+s.Guidance)
	}
	return "STRUCTURE FOR " + t.Label + ":\n" + strings.Join(parts, "\n\n")
}

// SectionNames lists the headings of a query type's template.
func SectionNames(t QueryType) []string {
	tpl := prompts.Types[t]
	names := make([]string, 0, len(tpl.Sections))
	for _, s := range tpl.Sections {
		names = append(names, s.Name)
	}
	return names
}

func fill(tpl string, vars map[string]string) string {
	for k, v := range vars {
		tpl = strings.ReplaceAll(tpl, "{{"+k+"}}", v)
	}
	return tpl
}
