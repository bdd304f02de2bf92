package chat

import "strings"

// Role identifies who produced an exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Exchange is one turn of a conversation.
type Exchange struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserExchange builds a caller turn.
func UserExchange(text string) Exchange {
	return Exchange{Role: RoleUser, Text: text}
}

// AssistantExchange builds a reply turn.
func AssistantExchange(text string) Exchange {
	return Exchange{Role: RoleAssistant, Text: text}
}

// ParseRole accepts the roles used on the wire, including the "model" spelling
// older clients send for assistant turns.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "caller":
		return RoleUser, true
	case "assistant", "model":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// CloneExchanges returns an independent copy of history.
func CloneExchanges(history []Exchange) []Exchange {
	if len(history) == 0 {
		return nil
	}
	copied := make([]Exchange, len(history))
	copy(copied, history)
	return copied
}
