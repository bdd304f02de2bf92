package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
)

//go:embed instructions.yaml
var defaultInstructions []byte

// Resource is a help link the model may cite at the end of a reply.
type Resource struct {
	Topic string `yaml:"topic"`
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// PromptTemplate defines the building blocks of one mode's instruction.
type PromptTemplate struct {
	Instruction     string     `yaml:"instruction"`
	ResourcesHeader string     `yaml:"resources_header"`
	Resources       []Resource `yaml:"resources"`
	RulesHeader     string     `yaml:"rules_header"`
	Rules           []string   `yaml:"rules"`
	Closing         string     `yaml:"closing"`
}

// ModePromptManager maps every mode to its system instruction. Instructions
// are rendered once at construction and never change afterwards.
type ModePromptManager struct {
	templates    map[chat.Mode]*PromptTemplate
	instructions map[chat.Mode]string
}

// NewModePromptManager loads the embedded instruction table.
func NewModePromptManager() (*ModePromptManager, error) {
	return ParseModePrompts(defaultInstructions)
}

// ParseModePrompts builds a manager from an instruction table document. Every
// mode must have an instruction.
func ParseModePrompts(data []byte) (*ModePromptManager, error) {
	var doc struct {
		Modes map[chat.Mode]*PromptTemplate `yaml:"modes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode instruction table: %w", err)
	}

	pm := &ModePromptManager{
		templates:    make(map[chat.Mode]*PromptTemplate, len(doc.Modes)),
		instructions: make(map[chat.Mode]string, len(doc.Modes)),
	}
	for _, m := range chat.Modes() {
		template, ok := doc.Modes[m]
		if !ok || strings.TrimSpace(template.Instruction) == "" {
			return nil, fmt.Errorf("instruction table has no instruction for mode %s", m)
		}
		pm.templates[m] = template
		pm.instructions[m] = render(template)
	}
	return pm, nil
}

// Instruction returns the system instruction of m.
func (pm *ModePromptManager) Instruction(m chat.Mode) (string, bool) {
	instruction, ok := pm.instructions[m]
	return instruction, ok
}

// Resources returns the help links of m, if any.
func (pm *ModePromptManager) Resources(m chat.Mode) []Resource {
	template, ok := pm.templates[m]
	if !ok {
		return nil
	}
	return append([]Resource(nil), template.Resources...)
}

func render(template *PromptTemplate) string {
	var builder strings.Builder
	builder.WriteString(strings.TrimSpace(template.Instruction))

	if len(template.Resources) > 0 {
		builder.WriteString("\n\n")
		builder.WriteString(template.ResourcesHeader)
		for _, r := range template.Resources {
			fmt.Fprintf(&builder, "\n- %s: [VIDEO:%s](%s)", r.Topic, r.Title, r.URL)
		}
	}

	if len(template.Rules) > 0 {
		header := template.RulesHeader
		if header == "" {
			header = "Cách trả lời:"
		}
		builder.WriteString("\n\n")
		builder.WriteString(header)
		for _, rule := range template.Rules {
			builder.WriteString("\n- ")
			builder.WriteString(rule)
		}
	}

	if template.Closing != "" {
		builder.WriteString("\n\n")
		builder.WriteString(template.Closing)
	}
	return builder.String()
}
