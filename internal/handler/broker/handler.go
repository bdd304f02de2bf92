package broker

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	brokerModel "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	brokerService "github.com/zhouzirui/codetutor/backend/internal/service/broker"
	"github.com/zhouzirui/codetutor/backend/pkg/utils"
)

// Handler 凭证与会话 token 的HTTP处理器
type Handler struct {
	brokerSvc   *brokerService.Service
	credentials credential.Store
	format      credential.Format
}

// New 创建 broker 处理器
func New(brokerSvc *brokerService.Service, credentials credential.Store, format credential.Format) *Handler {
	return &Handler{
		brokerSvc:   brokerSvc,
		credentials: credentials,
		format:      format,
	}
}

// RegisterRoutes 注册凭证与 token 相关的路由，旧路径作为别名保留
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/check-identity", h.handleCheckIdentity)
	r.Post("/check-user", h.handleCheckIdentity)

	r.Post("/issue-personal-credential-test", h.handleTestCredential)
	r.Post("/test-api-key", h.handleTestCredential)

	r.Post("/save-credential", h.handleSaveCredential)
	r.Post("/save-api-key", h.handleSaveCredential)

	r.Post("/issue-token", h.handleIssueToken)
	r.Post("/get-token", h.handleIssueToken)

	r.Post("/revoke-token", h.handleRevokeToken)
	r.Post("/release-token", h.handleRevokeToken)
}

// handleCheckIdentity 查询身份是否已保存凭证
func (h *Handler) handleCheckIdentity(w http.ResponseWriter, r *http.Request) {
	var payload api.CheckIdentityRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	_, exists := h.credentials.Lookup(strings.TrimSpace(payload.Identity))
	utils.RespondJSON(w, http.StatusOK, api.CheckIdentityResponse{
		Exists:        exists,
		HasCredential: h.credentials.HasCredential(strings.TrimSpace(payload.Identity)),
	})
}

// handleTestCredential 只做格式校验，不访问后端
func (h *Handler) handleTestCredential(w http.ResponseWriter, r *http.Request) {
	var payload api.TestCredentialRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	if strings.TrimSpace(payload.Credential) == "" {
		utils.RespondError(w, http.StatusBadRequest, "credential is required")
		return
	}

	if reason := h.format.Check(payload.Credential); reason != "" {
		utils.RespondJSON(w, http.StatusOK, api.TestCredentialResponse{Valid: false, Reason: reason})
		return
	}
	utils.RespondJSON(w, http.StatusOK, api.TestCredentialResponse{Valid: true})
}

// handleSaveCredential 保存（或覆盖）身份对应的凭证
func (h *Handler) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	var payload api.SaveCredentialRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	if reason := h.format.Check(payload.Credential); reason != "" {
		utils.RespondFailure(w, fmt.Errorf("%w: %s", brokerModel.ErrInvalidArgument, reason))
		return
	}

	err := h.credentials.SaveCredential(
		strings.TrimSpace(payload.Identity),
		strings.TrimSpace(payload.DisplayName),
		strings.TrimSpace(payload.Credential),
	)
	if err != nil {
		utils.RespondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

// handleIssueToken 为已保存凭证的身份签发 token
func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var payload api.IssueTokenRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	token, err := h.brokerSvc.IssueToken(r.Context(), payload.Identity)
	if err != nil {
		utils.RespondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, api.IssueTokenResponse{Token: token})
}

// handleRevokeToken 撤销 token，未知 token 同样返回成功
func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var payload api.RevokeTokenRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	h.brokerSvc.RevokeToken(r.Context(), payload.Token)
	utils.RespondJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}
