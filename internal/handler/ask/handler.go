package ask

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/codetutor/backend/internal/model/api"
	brokerModel "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/chat"
	routerService "github.com/zhouzirui/codetutor/backend/internal/service/router"
	"github.com/zhouzirui/codetutor/backend/pkg/utils"
)

// Handler 提问与分类接口的HTTP处理器
type Handler struct {
	routerSvc *routerService.Service
}

// New 创建提问处理器
func New(routerSvc *routerService.Service) *Handler {
	return &Handler{routerSvc: routerSvc}
}

// RegisterRoutes 注册提问相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
	r.Post("/api/ask", h.handleAsk)

	r.Post("/classify", h.handleClassify)
	r.Post("/api/classify", h.handleClassify)
}

// handleAsk 按模式路由到后端
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload api.AskRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	history, err := normalizeHistory(payload.History)
	if err != nil {
		utils.RespondFailure(w, err)
		return
	}

	reply, err := h.routerSvc.Ask(r.Context(), routerService.Request{
		Mode:    payload.Mode,
		Prompt:  payload.Prompt,
		Token:   payload.Token,
		History: history,
	})
	if err != nil {
		utils.RespondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, api.AskResponse{Reply: reply.Text, Model: reply.Model})
}

// handleClassify 使用 token 对应的凭证直接调用后端
func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var payload api.ClassifyRequest
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	reply, err := h.routerSvc.Classify(r.Context(), payload.Token, payload.Prompt)
	if err != nil {
		utils.RespondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, api.ClassifyResponse{Reply: reply.Text})
}

// normalizeHistory 统一角色写法，拒绝未知角色
func normalizeHistory(history []chat.Exchange) ([]chat.Exchange, error) {
	out := make([]chat.Exchange, 0, len(history))
	for i, ex := range history {
		role, ok := chat.ParseRole(string(ex.Role))
		if !ok {
			return nil, fmt.Errorf("%w: history[%d] has unknown role %q", brokerModel.ErrInvalidArgument, i, ex.Role)
		}
		out = append(out, chat.Exchange{Role: role, Text: ex.Text})
	}
	return out, nil
}
