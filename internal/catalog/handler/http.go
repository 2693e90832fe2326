// Package handler serves the read-only college and category lists.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/catalog/domain"
	"github.com/dip-aaa/web-project-sub002/internal/httpx"
)

// Lister reads the seeded lookup rows.
type Lister interface {
	ListColleges(ctx context.Context) ([]domain.College, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type Handler struct {
	repo Lister
	log  *zap.Logger
}

func New(repo Lister, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{repo: repo, log: log}
}

// Colleges answers GET /colleges. The signup form uses it to show the accepted domains.
func (h *Handler) Colleges(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListColleges(r.Context())
	if err != nil {
		h.log.Error("list colleges", zap.Error(err))
		httpx.Message(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	if list == nil {
		list = []domain.College{}
	}
	httpx.JSONResponse(w, http.StatusOK, list)
}

// Categories answers GET /categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.log.Error("list categories", zap.Error(err))
		httpx.Message(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	if list == nil {
		list = []domain.Category{}
	}
	httpx.JSONResponse(w, http.StatusOK, list)
}
