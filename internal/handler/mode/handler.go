package mode

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
	"github.com/zhouzirui/codetutor/backend/pkg/utils"
)

// Handler 模式展示信息的HTTP处理器
type Handler struct {
	profiles mode.Store
}

// New 创建模式处理器
func New(profiles mode.Store) *Handler {
	return &Handler{
		profiles: profiles,
	}
}

// RegisterRoutes 注册模式相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/modes", h.handleListModes)
}

// handleListModes 列出所有模式
func (h *Handler) handleListModes(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.List())
}
