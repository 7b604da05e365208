// Package blog orchestrates deduplicated post writes across the storage
// manager and the metadata store.
package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lmarchetti/inkwell/internal/metadata"
	"github.com/lmarchetti/inkwell/internal/model"
	"github.com/lmarchetti/inkwell/internal/storage"
	"github.com/lmarchetti/inkwell/internal/util"
	"github.com/lmarchetti/inkwell/internal/util/compression"
)

var blogLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	blogLogger = l
}

// Manager sequences blob writes and metadata inserts with a dedup contract:
// two posts with byte-identical content share one blob and one metadata row.
type Manager struct {
	storage *storage.Manager
	meta    *metadata.Store

	compressor compression.Compressor
}

func NewManager(storageManager *storage.Manager, meta *metadata.Store) *Manager {
	return &Manager{
		storage: storageManager,
		meta:    meta,

		compressor: compression.ZstdCompressor{},
	}
}

// CreatePost stores the post and returns its storage identifier. If a post
// with identical content already exists, nothing is written and the existing
// identifier is returned.
//
// The duplicate check and the insert are not one atomic step; the unique
// index on content_hash is the backstop. When a concurrent writer wins the
// race we re-read and return the winner's identifier.
func (m *Manager) CreatePost(ctx context.Context, post *model.Post) (string, error) {
	post.EnsureHash()
	post.EnsureSlug()
	if post.Excerpt == "" {
		post.Excerpt = util.Excerpt(post.Content, 50)
	}

	if existing, ok, err := m.meta.StorageIDByContentHash(post.ContentHash); err != nil {
		return "", err
	} else if ok {
		blogLogger.Debug().
			Str("content_hash", post.ContentHash).
			Str("storage_id", existing).
			Msg("Duplicate content, reusing stored post")
		return existing, nil
	}

	blob, err := m.encodePost(post)
	if err != nil {
		return "", err
	}

	result, err := m.storage.Store(ctx, blob, map[string]string{
		storage.MetaContentType: "application/json",
		storage.MetaPath:        "posts/" + post.Slug + ".json",
		"post_id":               string(post.ID),
		"slug":                  post.Slug,
	})
	if err != nil {
		return "", fmt.Errorf("error storing post blob: %w", err)
	}

	post.StorageID = result.ID

	if err := m.meta.InsertPost(post, result.ID); err != nil {
		if errors.Is(err, metadata.ErrDuplicateContent) {
			// Lost the race to a concurrent writer with the same content.
			// Its row is authoritative; our blob is a harmless duplicate on
			// content-addressed backends and an orphan elsewhere.
			if existing, ok, lookupErr := m.meta.StorageIDByContentHash(post.ContentHash); lookupErr == nil && ok {
				blogLogger.Info().
					Str("content_hash", post.ContentHash).
					Str("storage_id", existing).
					Msg("Concurrent duplicate insert, reusing winner")
				return existing, nil
			}
		}
		// The blob is written but unreferenced. Reconciliation is an
		// out-of-band concern; see the orphan note in the design doc.
		blogLogger.Error().Err(err).
			Str("storage_id", result.ID).
			Msg("Metadata insert failed after blob write, blob orphaned")
		return "", err
	}

	return result.ID, nil
}

// GetPost resolves a storage identifier to a post. The metadata store is
// authoritative and checked first; on a miss the raw blob is fetched from the
// default backend, which may still hold unindexed historical content.
func (m *Manager) GetPost(ctx context.Context, storageID string) (*model.Post, error) {
	post, err := m.meta.PostByStorageID(storageID)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		return nil, err
	}

	blob, err := m.storage.Default().Retrieve(ctx, storageID)
	if err != nil {
		return nil, err
	}
	return m.decodePost(blob)
}

// PostByID resolves a primary post id against the metadata store.
func (m *Manager) PostByID(ctx context.Context, id model.PostID) (*model.Post, error) {
	return m.meta.PostByID(id)
}

// UpdatePost applies an in-place edit keyed by the post id: content hash and
// modification time are refreshed and tags relinked, with no dedup redirect.
// The published flag is untouched; only PublishPost and UnpublishPost flip it.
// Edits whose content collides with another post are rejected with
// metadata.ErrDuplicateContent rather than silently collapsed onto it.
func (m *Manager) UpdatePost(ctx context.Context, post *model.Post) error {
	post.EnsureHash()
	post.EnsureSlug()
	return m.meta.UpdatePost(post)
}

// DeletePost removes the post from the metadata store only. Blobs on
// immutable backends stay where they are.
func (m *Manager) DeletePost(ctx context.Context, id model.PostID) error {
	return m.meta.DeletePost(id)
}

// PublishPost flips the published flag and refreshes the update timestamp.
func (m *Manager) PublishPost(ctx context.Context, storageID string) error {
	return m.meta.SetPublished(storageID, true)
}

func (m *Manager) UnpublishPost(ctx context.Context, storageID string) error {
	return m.meta.SetPublished(storageID, false)
}

func (m *Manager) ListPosts(ctx context.Context, publishedOnly bool) ([]*model.Post, error) {
	return m.meta.ListPosts(publishedOnly)
}

func (m *Manager) SearchPosts(ctx context.Context, query string) ([]*model.Post, error) {
	return m.meta.SearchPosts(query)
}

func (m *Manager) AllTags(ctx context.Context) ([]metadata.TagCount, error) {
	return m.meta.AllTags()
}

func (m *Manager) PostsByTag(ctx context.Context, tag string, publishedOnly bool) ([]*model.Post, error) {
	return m.meta.PostsByTag(tag, publishedOnly)
}

func (m *Manager) RelatedPosts(ctx context.Context, postID model.PostID, tags []string, category string, limit int) ([]*model.Post, error) {
	return m.meta.RelatedPosts(postID, tags, category, limit)
}

// ImportMarkdown builds a post from a markdown document with optional
// %%%-delimited TOML front matter and runs it through CreatePost.
func (m *Manager) ImportMarkdown(ctx context.Context, md []byte, author string) (*model.Post, string, error) {
	title := ""
	body := md
	var tags []string
	category := ""
	excerpt := ""

	if meta, err := util.GetFrontMatter(md); err == nil {
		title = meta.Title
		tags = meta.Tags
		category = meta.Category
		excerpt = meta.Excerpt
		body = md[meta.Consumed:]
	}

	if title == "" {
		title = "Untitled"
	}

	post := model.NewPost(title, string(body), author)
	post.Tags = tags
	if post.Tags == nil {
		post.Tags = []string{}
	}
	post.Category = category
	post.Excerpt = excerpt

	storageID, err := m.CreatePost(ctx, post)
	if err != nil {
		return nil, "", err
	}
	return post, storageID, nil
}

func (m *Manager) encodePost(post *model.Post) ([]byte, error) {
	raw, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("error serializing post: %w", err)
	}

	blob, err := m.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("error compressing post: %w", err)
	}
	return blob, nil
}

func (m *Manager) decodePost(blob []byte) (*model.Post, error) {
	raw, err := m.compressor.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("error decompressing post: %w", err)
	}

	var post model.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("error deserializing post: %w", err)
	}
	return &post, nil
}
