// Package web exposes the blog manager over an HTTP JSON API.
package web

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lmarchetti/inkwell/internal/blog"
	"github.com/lmarchetti/inkwell/internal/config"
)

var webLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	webLogger = l
}

type Server struct {
	blog *blog.Manager
	cfg  *config.Config
}

func NewServer(blogManager *blog.Manager, cfg *config.Config) *Server {
	return &Server{
		blog: blogManager,
		cfg:  cfg,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/posts", s.handleCreatePost)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("GET /api/posts/{id}", s.handleGetPost)
	mux.HandleFunc("PUT /api/posts/{id}", s.handleUpdatePost)
	mux.HandleFunc("DELETE /api/posts/{id}", s.handleDeletePost)
	mux.HandleFunc("POST /api/posts/{id}/publish", s.handlePublishPost)
	mux.HandleFunc("POST /api/posts/{id}/unpublish", s.handleUnpublishPost)
	mux.HandleFunc("GET /api/posts/{id}/related", s.handleRelatedPosts)
	mux.HandleFunc("POST /api/posts/import", s.handleImportMarkdown)

	mux.HandleFunc("GET /api/search", s.handleSearchPosts)
	mux.HandleFunc("GET /api/tags", s.handleAllTags)
	mux.HandleFunc("GET /api/tags/{tag}/posts", s.handlePostsByTag)

	return mux
}
