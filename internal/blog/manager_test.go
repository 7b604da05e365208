package blog

import (
	"context"
	"errors"
	"testing"

	"github.com/lmarchetti/inkwell/internal/db"
	"github.com/lmarchetti/inkwell/internal/metadata"
	"github.com/lmarchetti/inkwell/internal/model"
	"github.com/lmarchetti/inkwell/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Local) {
	t.Helper()

	database := db.NewSQLite(":memory:")
	if err := database.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	local, err := storage.NewLocal(storage.LocalConfig{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	storageManager := storage.NewManager(storage.KindLocal)
	storageManager.AddBackend(local)

	return NewManager(storageManager, metadata.NewStore(database)), local
}

func TestCreatePostRoundTrip(t *testing.T) {
	m, local := newTestManager(t)
	ctx := context.Background()

	post := model.NewPost("Round Trip", "body of the post", "tester")
	post.Tags = []string{"go"}

	storageID, err := m.CreatePost(ctx, post)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if storageID == "" {
		t.Fatal("empty storage id")
	}
	if post.Excerpt == "" {
		t.Error("excerpt not derived from content")
	}

	got, err := m.GetPost(ctx, storageID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Title != "Round Trip" || got.Content != "body of the post" {
		t.Errorf("got %q/%q", got.Title, got.Content)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("tags = %v, want [go]", got.Tags)
	}

	// The blob really is in the backend under the returned identifier.
	exists, err := local.Exists(ctx, storageID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("blob missing from storage backend")
	}
}

func TestCreatePostDeduplicates(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := model.NewPost("First Title", "shared body", "alice")
	firstID, err := m.CreatePost(ctx, first)
	if err != nil {
		t.Fatalf("first CreatePost: %v", err)
	}

	second := model.NewPost("Second Title", "shared body", "bob")
	secondID, err := m.CreatePost(ctx, second)
	if err != nil {
		t.Fatalf("second CreatePost: %v", err)
	}

	if firstID != secondID {
		t.Errorf("duplicate content got distinct ids: %q vs %q", firstID, secondID)
	}

	// Only the first post's metadata survives.
	got, err := m.GetPost(ctx, firstID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Title != "First Title" || got.Author != "alice" {
		t.Errorf("winner = %q by %q, want First Title by alice", got.Title, got.Author)
	}

	posts, err := m.ListPosts(ctx, false)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("got %d posts, want 1", len(posts))
	}
}

func TestCreatePostIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	ids := map[string]bool{}
	for range 3 {
		post := model.NewPost("Repeat", "the very same content", "tester")
		id, err := m.CreatePost(ctx, post)
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}
		ids[id] = true
	}
	if len(ids) != 1 {
		t.Errorf("got %d distinct ids across repeated creates, want 1", len(ids))
	}
}

func TestGetPostFallsBackToBlob(t *testing.T) {
	m, local := newTestManager(t)
	ctx := context.Background()

	// A blob written directly to the backend, bypassing the metadata store.
	orphan := model.NewPost("Unindexed", "historical content", "tester")
	blob, err := m.encodePost(orphan)
	if err != nil {
		t.Fatalf("encodePost: %v", err)
	}
	result, err := local.Store(ctx, blob, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := m.GetPost(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Title != "Unindexed" {
		t.Errorf("title = %q, want Unindexed", got.Title)
	}
}

func TestGetPostMissing(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.GetPost(context.Background(), "no-such-id")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want storage.ErrNotFound", err)
	}
}

func TestUpdatePostInPlace(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	post := model.NewPost("Editable", "version one", "tester")
	storageID, err := m.CreatePost(ctx, post)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	originalHash := post.ContentHash

	post.UpdateContent("version two")
	if err := m.UpdatePost(ctx, post); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}

	got, err := m.GetPost(ctx, storageID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Content != "version two" {
		t.Errorf("content = %q, want version two", got.Content)
	}
	if got.ContentHash == originalHash {
		t.Error("content hash not refreshed on update")
	}
	if got.StorageID != storageID {
		t.Errorf("storage id changed to %q", got.StorageID)
	}
}

func TestUpdatePostRejectsContentCollision(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a := model.NewPost("A", "content of a", "tester")
	if _, err := m.CreatePost(ctx, a); err != nil {
		t.Fatalf("CreatePost a: %v", err)
	}
	b := model.NewPost("B", "content of b", "tester")
	if _, err := m.CreatePost(ctx, b); err != nil {
		t.Fatalf("CreatePost b: %v", err)
	}

	b.UpdateContent("content of a")
	if err := m.UpdatePost(ctx, b); !errors.Is(err, metadata.ErrDuplicateContent) {
		t.Errorf("got %v, want ErrDuplicateContent", err)
	}
}

func TestDeletePostKeepsBlob(t *testing.T) {
	m, local := newTestManager(t)
	ctx := context.Background()

	post := model.NewPost("Transient", "metadata only delete", "tester")
	storageID, err := m.CreatePost(ctx, post)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if err := m.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	// Metadata is gone, but the blob stays and is still decodable.
	got, err := m.GetPost(ctx, storageID)
	if err != nil {
		t.Fatalf("GetPost after delete: %v", err)
	}
	if got.Title != "Transient" {
		t.Errorf("title = %q, want Transient", got.Title)
	}

	exists, _ := local.Exists(ctx, storageID)
	if !exists {
		t.Error("blob removed on metadata delete")
	}
}

func TestPublishUnpublish(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	post := model.NewPost("Toggle", "publish toggling", "tester")
	storageID, err := m.CreatePost(ctx, post)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	if err := m.PublishPost(ctx, storageID); err != nil {
		t.Fatalf("PublishPost: %v", err)
	}
	published, err := m.ListPosts(ctx, true)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("got %d published posts, want 1", len(published))
	}

	if err := m.UnpublishPost(ctx, storageID); err != nil {
		t.Fatalf("UnpublishPost: %v", err)
	}
	published, err = m.ListPosts(ctx, true)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(published) != 0 {
		t.Errorf("got %d published posts after unpublish, want 0", len(published))
	}

	if err := m.PublishPost(ctx, "missing"); !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestImportMarkdownWithFrontMatter(t *testing.T) {
	m, _ := newTestManager(t)

	md := []byte(`%%%
title = "Imported"
tags = ["a", "b"]
category = "notes"
%%%

The body of the post.
`)

	post, storageID, err := m.ImportMarkdown(context.Background(), md, "importer")
	if err != nil {
		t.Fatalf("ImportMarkdown: %v", err)
	}
	if storageID == "" {
		t.Fatal("empty storage id")
	}
	if post.Title != "Imported" {
		t.Errorf("title = %q, want Imported", post.Title)
	}
	if post.Category != "notes" {
		t.Errorf("category = %q, want notes", post.Category)
	}
	if len(post.Tags) != 2 {
		t.Errorf("tags = %v, want 2 entries", post.Tags)
	}
	if post.Author != "importer" {
		t.Errorf("author = %q, want importer", post.Author)
	}
	if post.Content == "" || post.Content[0] == '%' {
		t.Errorf("front matter not stripped from body: %q", post.Content)
	}
}

func TestImportMarkdownWithoutFrontMatter(t *testing.T) {
	m, _ := newTestManager(t)

	post, _, err := m.ImportMarkdown(context.Background(), []byte("Just markdown, no metadata."), "importer")
	if err != nil {
		t.Fatalf("ImportMarkdown: %v", err)
	}
	if post.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", post.Title)
	}
	if post.Content != "Just markdown, no metadata." {
		t.Errorf("content = %q", post.Content)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	post := model.NewPost("Codec", "compressible content, compressible content", "tester")
	blob, err := m.encodePost(post)
	if err != nil {
		t.Fatalf("encodePost: %v", err)
	}

	got, err := m.decodePost(blob)
	if err != nil {
		t.Fatalf("decodePost: %v", err)
	}
	if got.ID != post.ID || got.Content != post.Content {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := m.decodePost([]byte("not a zstd frame")); err == nil {
		t.Error("decodePost accepted garbage")
	}
}
