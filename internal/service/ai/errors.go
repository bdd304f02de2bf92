package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/zhouzirui/codetutor/backend/internal/model/broker"
)

// ClassifyError maps a backend failure onto the broker taxonomy. Structured
// Gemini errors are inspected first; other providers are recognised by the
// markers their messages carry.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, broker.ErrRateLimited) || errors.Is(err, broker.ErrUnauthorized) || errors.Is(err, broker.ErrUnknown) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return fmt.Errorf("%w: %w", broker.ErrRateLimited, err)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
			apiErr.Status == "UNAUTHENTICATED" || apiErr.Status == "PERMISSION_DENIED",
			strings.Contains(apiErr.Message, "API key"):
			return fmt.Errorf("%w: %w", broker.ErrUnauthorized, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "quota", "resource_exhausted", "rate limit", "ratelimit"):
		return fmt.Errorf("%w: %w", broker.ErrRateLimited, err)
	case containsAny(msg, "api key", "apikey", "401", "403", "unauthenticated", "permission_denied", "unauthorized"):
		return fmt.Errorf("%w: %w", broker.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %w", broker.ErrUnknown, err)
	}
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
