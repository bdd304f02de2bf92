package chat

import "strings"

// 练习题上下文块的边界标记，客户端在考试模式下把题目信息放在提问之前。
const (
	ProblemContextOpen  = "[THÔNG TIN BÀI TẬP]"
	ProblemContextClose = "[KẾT THÚC THÔNG TIN BÀI TẬP]"
)

// CallerText strips a leading problem context block from prompt and returns
// the caller's own words. Prompts without a complete block are returned as is.
func CallerText(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if !strings.HasPrefix(trimmed, ProblemContextOpen) {
		return prompt
	}
	_, after, found := strings.Cut(trimmed, ProblemContextClose)
	if !found {
		return prompt
	}
	return strings.TrimSpace(after)
}
