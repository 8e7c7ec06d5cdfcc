package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

type UserHandler struct {
	content service.ContentServiceInterface
}

func NewUserHandler(content service.ContentServiceInterface) *UserHandler {
	return &UserHandler{content: content}
}

func (h *UserHandler) Creations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid pagination parameters", nil)
		return
	}
	result, err := h.content.ListCreations(r.Context(), userID, page)
	if err != nil {
		internalError(w, r, "list creations failed", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"creations":   result.Items,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total":       result.Total,
		"total_pages": result.TotalPages,
	})
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.content.Stats(r.Context(), userID)
	if err != nil {
		internalError(w, r, "creation stats failed", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"stats": stats})
}

func (h *UserHandler) DeleteCreation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid creation id", nil)
		return
	}
	if err := h.content.DeleteCreation(r.Context(), userID, uint(id)); err != nil {
		if errors.Is(err, service.ErrCreationNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "Creation not found", nil)
			return
		}
		internalError(w, r, "delete creation failed", err)
		return
	}
	response.Message(w, r, http.StatusOK, "Creation deleted successfully")
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	req := repository.PageRequest{Page: repository.DefaultPage, PageSize: repository.DefaultPageSize}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, errors.New("invalid page")
		}
		req.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, errors.New("invalid page_size")
		}
		req.PageSize = min(n, repository.MaxPageSize)
	}
	return req, nil
}
