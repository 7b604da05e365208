// Package model defines core data structures and types for the blog.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lmarchetti/inkwell/internal/util"
)

type PostID string

// Post is a blog post as stored in the metadata database and, serialized to
// JSON, in the configured storage backend.
type Post struct {
	ID        PostID    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Published bool      `json:"published"`
	Tags      []string  `json:"tags"`
	Category  string    `json:"category,omitempty"`

	// StorageID references the blob in the storage backend. Empty until the
	// post has been written through the blog manager.
	StorageID string `json:"storage_id,omitempty"`

	// ContentHash is the sha256 digest of Content. It is the dedup key and
	// must be recomputed on every content mutation.
	ContentHash string `json:"content_hash"`
}

func NewPost(title, content, author string) *Post {
	now := time.Now().UTC()

	return &Post{
		ID:          PostID(uuid.New().String()),
		Title:       title,
		Slug:        GenerateSlug(title),
		Content:     content,
		Author:      author,
		CreatedAt:   now,
		UpdatedAt:   now,
		Published:   false,
		Tags:        []string{},
		ContentHash: util.ContentHashString(content),
	}
}

// GenerateSlug derives a URL-safe, ASCII-only slug from title. Titles with no
// ASCII alphanumerics (e.g. fully CJK) fall back to a timestamp slug so the
// result is never empty.
func GenerateSlug(title string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(title) {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '-' || c == '_':
			b.WriteByte('-')
		}
	}

	parts := strings.FieldsFunc(b.String(), func(c rune) bool { return c == '-' })
	slug := strings.Join(parts, "-")

	if slug == "" {
		return fmt.Sprintf("post-%d", time.Now().Unix())
	}
	return slug
}

// UpdateContent replaces the post body and refreshes the content hash and
// modification timestamp.
func (p *Post) UpdateContent(content string) {
	p.Content = content
	p.ContentHash = util.ContentHashString(content)
	p.UpdatedAt = time.Now().UTC()
}

// EnsureHash recomputes ContentHash when it is missing or stale.
func (p *Post) EnsureHash() {
	if h := util.ContentHashString(p.Content); p.ContentHash != h {
		p.ContentHash = h
	}
}

// EnsureSlug fills in the slug for posts built by hand.
func (p *Post) EnsureSlug() {
	if p.Slug == "" {
		p.Slug = GenerateSlug(p.Title)
	}
}
