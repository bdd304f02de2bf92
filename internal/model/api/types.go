// Package api defines the JSON bodies exchanged between the broker's HTTP
// surface and its clients.
package api

import "github.com/zhouzirui/codetutor/backend/internal/model/chat"

type CheckIdentityRequest struct {
	Identity string `json:"identity"`
}

type CheckIdentityResponse struct {
	Exists        bool `json:"exists"`
	HasCredential bool `json:"hasCredential"`
}

type TestCredentialRequest struct {
	Credential string `json:"credential"`
}

type TestCredentialResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type SaveCredentialRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Credential  string `json:"credential"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type IssueTokenRequest struct {
	Identity string `json:"identity"`
}

type IssueTokenResponse struct {
	Token string `json:"token"`
}

type RevokeTokenRequest struct {
	Token string `json:"token"`
}

type AskRequest struct {
	Prompt  string          `json:"prompt"`
	Token   string          `json:"token,omitempty"`
	History []chat.Exchange `json:"history"`
	Mode    chat.Mode       `json:"mode"`
}

type AskResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

type ClassifyRequest struct {
	Prompt string `json:"prompt"`
	Token  string `json:"token"`
}

type ClassifyResponse struct {
	Reply string `json:"reply"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ActiveTokens   int    `json:"activeTokens"`
	SharedPoolSize int    `json:"sharedPoolSize"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
