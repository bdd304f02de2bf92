package credential

import (
	"fmt"
	"strings"
)

// Format describes the superficial shape a credential must have before it is
// accepted. Backend authorization is only discovered on first use.
type Format struct {
	Prefix    string
	MinLength int
}

// DefaultFormat matches Gemini API keys.
func DefaultFormat() Format {
	return Format{Prefix: "AIza", MinLength: 30}
}

// Check returns "" when credential looks acceptable, otherwise a reason
// suitable for showing to the caller.
func (f Format) Check(credential string) string {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "credential is required"
	}
	if f.Prefix != "" && !strings.HasPrefix(credential, f.Prefix) {
		return fmt.Sprintf("credential must start with %s", f.Prefix)
	}
	if len(credential) < f.MinLength {
		return fmt.Sprintf("credential must be at least %d characters", f.MinLength)
	}
	return ""
}

// Valid is Check == "".
func (f Format) Valid(credential string) bool {
	return f.Check(credential) == ""
}
