package chat

import "strings"

// Mode selects the routing and filtering policy of a conversation.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeExam     Mode = "exam"
	ModeTeacher  Mode = "teacher"
)

// Modes lists every supported mode in display order.
func Modes() []Mode {
	return []Mode{ModePractice, ModeExam, ModeTeacher}
}

// ParseMode validates a mode name.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePractice:
		return ModePractice, true
	case ModeExam:
		return ModeExam, true
	case ModeTeacher:
		return ModeTeacher, true
	default:
		return "", false
	}
}

// UsesSharedPool reports whether calls in this mode are paid by the shared
// credential pool rather than the caller's own credential.
func (m Mode) UsesSharedPool() bool {
	return m == ModeExam || m == ModeTeacher
}

// RequiresPersonalCredential is the inverse of UsesSharedPool.
func (m Mode) RequiresPersonalCredential() bool {
	return m == ModePractice
}

func (m Mode) String() string { return string(m) }
