package session

import (
	"strings"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
)

// Problem is the exercise shown on the current page.
type Problem struct {
	Title        string
	Description  string
	Requirements string
	Constraints  string
	Examples     string
}

// ProblemSource reads the exercise from the current page. ok is false when
// the page is not a problem page.
type ProblemSource interface {
	CurrentProblem() (p Problem, ok bool)
}

// BuildContextPrompt prefixes text with the problem block. Empty fields are
// left out; a problem without a description is not worth sending and text is
// returned unchanged.
func BuildContextPrompt(p Problem, text string) string {
	if strings.TrimSpace(p.Description) == "" {
		return text
	}

	parts := []string{chat.ProblemContextOpen}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Tiêu đề", p.Title)
	add("Đề bài", p.Description)
	add("Yêu cầu", p.Requirements)
	add("Ràng buộc", p.Constraints)
	add("Ví dụ", p.Examples)
	parts = append(parts, chat.ProblemContextClose+"\n", text)
	return strings.Join(parts, "\n")
}
