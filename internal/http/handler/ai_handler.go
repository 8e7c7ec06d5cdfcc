package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

type AIHandler struct {
	content service.ContentServiceInterface
}

func NewAIHandler(content service.ContentServiceInterface) *AIHandler {
	return &AIHandler{content: content}
}

func (h *AIHandler) WriteArticle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.ArticleRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	res, err := h.content.WriteArticle(r.Context(), userID, req)
	if err != nil {
		h.writeContentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *AIHandler) BlogTitles(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.TitleRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	titles, err := h.content.BlogTitles(r.Context(), userID, req)
	if err != nil {
		h.writeContentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"titles": titles})
}

func (h *AIHandler) GenerateImages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req service.ImageRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	images, err := h.content.GenerateImages(r.Context(), userID, req)
	if err != nil {
		h.writeContentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"images": images})
}

const maxResumeUpload = 512 << 10

// ReviewResume accepts either JSON {resume, targetRole} or a multipart form
// with a "resume" text file and an optional "targetRole" field.
func (h *AIHandler) ReviewResume(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	req, err := decodeResumeRequest(r)
	if err != nil {
		badJSON(w, r)
		return
	}
	review, err := h.content.ReviewResume(r.Context(), userID, req)
	if err != nil {
		h.writeContentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, review)
}

func decodeResumeRequest(r *http.Request) (service.ResumeRequest, error) {
	var req service.ResumeRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeJSON(r, &req)
		return req, err
	}
	if err := r.ParseMultipartForm(maxResumeUpload); err != nil {
		return req, err
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	req.TargetRole = r.FormValue("targetRole")
	file, _, err := r.FormFile("resume")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxResumeUpload))
	if err != nil {
		return req, err
	}
	req.Resume = string(data)
	return req, nil
}

func (h *AIHandler) writeContentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTopicRequired):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please provide a topic", nil)
	case errors.Is(err, service.ErrResumeRequired):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please upload a resume", nil)
	case errors.Is(err, service.ErrPromptRequired):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please provide an image prompt", nil)
	case errors.Is(err, service.ErrGeneratorUnavailable):
		response.Error(w, r, http.StatusServiceUnavailable, "GENERATOR_UNAVAILABLE", "Content generation is not configured", nil)
	default:
		internalError(w, r, "content generation failed", err)
	}
}
