package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lmarchetti/inkwell/internal/config"
	"github.com/lmarchetti/inkwell/internal/metadata"
	"github.com/lmarchetti/inkwell/internal/model"
	"github.com/lmarchetti/inkwell/internal/render"
	"github.com/lmarchetti/inkwell/internal/storage"
	"github.com/lmarchetti/inkwell/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		webLogger.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses: absence is 404,
// capability and validation failures are 4xx, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, metadata.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, metadata.ErrDuplicateContent):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrImmutable), errors.Is(err, storage.ErrMissingPath):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		webLogger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type postRequest struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Author   string   `json:"author"`
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`
}

type postResponse struct {
	*model.Post
	ReadingTime string `json:"reading_time"`
	HTML        string `json:"html,omitempty"`
}

func (s *Server) postResponse(post *model.Post, withHTML bool) *postResponse {
	resp := &postResponse{
		Post:        post,
		ReadingTime: util.EstimateReadingTime(post.Content).String(),
	}
	if withHTML {
		resp.HTML = string(render.RenderMarkdownCached(
			[]byte(post.Content), post.ContentHash, s.cfg.Content.HighlightTheme))
	}
	return resp
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Title == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
		return
	}

	post := model.NewPost(req.Title, req.Content, req.Author)
	if req.Tags != nil {
		post.Tags = req.Tags
	}
	post.Category = req.Category
	post.Excerpt = req.Excerpt

	storageID, err := s.blog.CreatePost(r.Context(), post)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"storage_id": storageID,
		"post":       s.postResponse(post, false),
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.blog.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	withHTML := r.URL.Query().Get("render") == "true"
	writeJSON(w, http.StatusOK, s.postResponse(post, withHTML))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	post := &model.Post{
		ID:        model.PostID(r.PathValue("id")),
		Title:     req.Title,
		Slug:      model.GenerateSlug(req.Title),
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		Author:    req.Author,
		Tags:      req.Tags,
		Category:  req.Category,
		UpdatedAt: time.Now().UTC(),
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if err := s.blog.UpdatePost(r.Context(), post); err != nil {
		writeError(w, err)
		return
	}

	// Re-read so the response carries the fields the update leaves alone,
	// the published flag in particular.
	updated, err := s.blog.PostByID(r.Context(), post.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.postResponse(updated, false))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.blog.DeletePost(r.Context(), model.PostID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishPost(w http.ResponseWriter, r *http.Request) {
	if err := s.blog.PublishPost(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpublishPost(w http.ResponseWriter, r *http.Request) {
	if err := s.blog.UnpublishPost(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published_only") == "true"

	posts, err := s.blog.ListPosts(r.Context(), publishedOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'q' is required"})
		return
	}

	posts, err := s.blog.SearchPosts(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.blog.AllTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handlePostsByTag(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published_only") == "true"

	posts, err := s.blog.PostsByTag(r.Context(), r.PathValue("tag"), publishedOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleRelatedPosts(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	post, err := s.blog.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	related, err := s.blog.RelatedPosts(r.Context(), post.ID, post.Tags, post.Category, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, related)
}

func (s *Server) handleImportMarkdown(w http.ResponseWriter, r *http.Request) {
	md, err := io.ReadAll(r.Body)
	if err != nil || len(md) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "markdown body is required"})
		return
	}

	author := r.URL.Query().Get("author")
	if author == "" {
		author = s.cfg.Site.Author
	}

	post, storageID, err := s.blog.ImportMarkdown(r.Context(), md, author)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"storage_id": storageID,
		"post":       s.postResponse(post, false),
	})
}
