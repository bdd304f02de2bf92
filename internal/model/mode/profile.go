package mode

import (
	"fmt"

	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
)

// Profile captures the presentation attributes of a mode exposed to clients.
type Profile struct {
	Mode        chat.Mode `json:"mode"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	Greeting    string    `json:"greeting"`    // %s 为用户显示名
	Placeholder string    `json:"placeholder"` // 输入框提示
	Description string    `json:"description,omitempty"`
}

// Greet renders the greeting for displayName.
func (p Profile) Greet(displayName string) string {
	if displayName == "" {
		displayName = "User"
	}
	return fmt.Sprintf(p.Greeting, displayName)
}

// Seed provides the built-in profiles for every mode.
func Seed() []Profile {
	return []Profile{
		{
			Mode:        chat.ModePractice,
			Name:        "Luyện tập",
			Color:       "#c62828",
			Icon:        "💡",
			Greeting:    "Xin chào **%s**! Bạn đang ở chế độ **Luyện tập**. Mình có thể hỗ trợ đầy đủ và giúp bạn giải bài tập.",
			Placeholder: "Nhập câu hỏi...",
			Description: "Full tutoring with the caller's own credential.",
		},
		{
			Mode:        chat.ModeExam,
			Name:        "Thực hành",
			Color:       "#ff9800",
			Icon:        "📝",
			Greeting:    "Xin chào **%s**! Bạn đang ở chế độ **Thực hành**. Mình sẽ giúp bạn hiểu đề bài nhưng không đưa code trực tiếp.",
			Placeholder: "Nhập câu hỏi...",
			Description: "Problem explanations only, paid by the shared pool.",
		},
		{
			Mode:        chat.ModeTeacher,
			Name:        "Hướng dẫn nghiệp vụ",
			Color:       "#2e7d32",
			Icon:        "📚",
			Greeting:    "Xin chào **%s**! Mình là trợ lý hỗ trợ nghiệp vụ của PTIT. Thầy/Cô có thể hỏi mình về các quy trình, nghiệp vụ, hoặc bất kỳ vấn đề nào cần hỗ trợ.",
			Placeholder: "Nhập câu hỏi về nghiệp vụ...",
			Description: "Platform operations guidance for staff, paid by the shared pool.",
		},
	}
}
