// Package metadata is the relational store for post metadata, tag
// associations and the full-text index. Every multi-statement mutation runs
// in a single transaction so a post is never observably linked to only part
// of its tags.
package metadata

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/lmarchetti/inkwell/internal/db"
	"github.com/lmarchetti/inkwell/internal/model"
)

var (
	// ErrNotFound signals an unknown post, never a crash.
	ErrNotFound = errors.New("metadata: post not found")

	// ErrDuplicateContent is returned when an insert or update collides with
	// the unique index on content_hash: another post already owns the body.
	ErrDuplicateContent = errors.New("metadata: content hash already stored")
)

var metaLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	metaLogger = l
}

type Store struct {
	db db.DB
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

const postColumns = `id, storage_id, title, slug, content, excerpt, author, content_hash,
       created_at, updated_at, published, category`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var post model.Post
	var excerpt, category sql.NullString

	err := row.Scan(&post.ID, &post.StorageID, &post.Title, &post.Slug, &post.Content,
		&excerpt, &post.Author, &post.ContentHash,
		&post.CreatedAt, &post.UpdatedAt, &post.Published, &category)
	if err != nil {
		return nil, err
	}

	post.Excerpt = excerpt.String
	post.Category = category.String
	post.Tags = []string{}
	return &post, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isHashCollision reports whether err is a unique-constraint violation on the
// content_hash index, i.e. another post already owns this body.
func isHashCollision(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(err.Error(), "content_hash")
}

func (s *Store) loadTags(postID model.PostID) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT t.name
		FROM tags t
		JOIN post_tags pt ON t.id = pt.tag_id
		WHERE pt.post_id = ?
		ORDER BY t.name`, postID)
	if err != nil {
		return nil, fmt.Errorf("error loading tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// linkTags upserts each tag and links it to the post inside tx. Duplicate tag
// names in the input collapse onto a single association via the composite
// primary key.
func linkTags(tx *sql.Tx, postID model.PostID, tags []string) error {
	for _, tag := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("error upserting tag %q: %w", tag, err)
		}

		var tagID int64
		if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, tag).Scan(&tagID); err != nil {
			return fmt.Errorf("error resolving tag %q: %w", tag, err)
		}

		if _, err := tx.Exec(`INSERT OR IGNORE INTO post_tags (post_id, tag_id) VALUES (?, ?)`, postID, tagID); err != nil {
			return fmt.Errorf("error linking tag %q: %w", tag, err)
		}
	}
	return nil
}

// InsertPost stores the post row and its tag associations atomically.
func (s *Store) InsertPost(post *model.Post, storageID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, storageID, post.Title, post.Slug, post.Content,
		nullable(post.Excerpt), post.Author, post.ContentHash,
		post.CreatedAt, post.UpdatedAt, post.Published, nullable(post.Category))
	if err != nil {
		if isHashCollision(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateContent, post.ContentHash)
		}
		return fmt.Errorf("error inserting post: %w", err)
	}

	if err := linkTags(tx, post.ID, post.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// StorageIDByContentHash is the dedup probe: it answers with just the storage
// identifier so callers can short-circuit without hydrating a whole post.
func (s *Store) StorageIDByContentHash(contentHash string) (string, bool, error) {
	var storageID string
	err := s.db.QueryRow(`SELECT storage_id FROM posts WHERE content_hash = ?`, contentHash).Scan(&storageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error querying content hash: %w", err)
	}
	return storageID, true, nil
}

func (s *Store) PostByStorageID(storageID string) (*model.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE storage_id = ?`, storageID)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: storage id %s", ErrNotFound, storageID)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning post: %w", err)
	}

	post.Tags, err = s.loadTags(post.ID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Store) PostByID(id model.PostID) (*model.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)

	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning post: %w", err)
	}

	post.Tags, err = s.loadTags(post.ID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost rewrites the post fields and relinks its tags atomically. The
// storage id, creation timestamp and published flag are immutable here; only
// SetPublished flips the flag, so an edit can never unpublish a post.
func (s *Store) UpdatePost(post *model.Post) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE posts
		SET title = ?, slug = ?, content = ?, excerpt = ?, author = ?,
		    category = ?, updated_at = ?, content_hash = ?
		WHERE id = ?`,
		post.Title, post.Slug, post.Content, nullable(post.Excerpt), post.Author,
		nullable(post.Category), post.UpdatedAt, post.ContentHash,
		post.ID)
	if err != nil {
		if isHashCollision(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateContent, post.ContentHash)
		}
		return fmt.Errorf("error updating post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, post.ID)
	}

	if _, err := tx.Exec(`DELETE FROM post_tags WHERE post_id = ?`, post.ID); err != nil {
		return fmt.Errorf("error unlinking tags: %w", err)
	}
	if err := linkTags(tx, post.ID, post.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeletePost removes the post row and its tag associations atomically. The
// blob in the storage backend is left alone; content-addressed backends
// cannot delete it anyway.
func (s *Store) DeletePost(id model.PostID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM post_tags WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("error unlinking tags: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}

	return tx.Commit()
}

func (s *Store) SetPublished(storageID string, published bool) error {
	res, err := s.db.Exec(`UPDATE posts SET published = ?, updated_at = ? WHERE storage_id = ?`,
		published, time.Now().UTC(), storageID)
	if err != nil {
		return fmt.Errorf("error updating published flag: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: storage id %s", ErrNotFound, storageID)
	}
	return nil
}

func (s *Store) queryPosts(query string, args ...any) ([]*model.Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, post := range posts {
		if post.Tags, err = s.loadTags(post.ID); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (s *Store) ListPosts(publishedOnly bool) ([]*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC`
	if publishedOnly {
		query = `SELECT ` + postColumns + ` FROM posts WHERE published = 1 ORDER BY created_at DESC`
	}
	return s.queryPosts(query)
}

// SearchPosts runs query against the FTS5 index. Ranking is owned by the
// index, not recomputed here.
func (s *Store) SearchPosts(query string) ([]*model.Post, error) {
	return s.queryPosts(`
		SELECT `+prefixedPostColumns("p")+`
		FROM posts p
		JOIN posts_fts ON p.rowid = posts_fts.rowid
		WHERE posts_fts MATCH ?
		ORDER BY rank`, query)
}

func prefixedPostColumns(alias string) string {
	cols := strings.Split(postColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// AllTags returns tag names with the number of published posts carrying each,
// most used first.
func (s *Store) AllTags() ([]TagCount, error) {
	rows, err := s.db.Query(`
		SELECT t.name, COUNT(p.id) AS post_count
		FROM tags t
		LEFT JOIN post_tags pt ON t.id = pt.tag_id
		LEFT JOIN posts p ON pt.post_id = p.id AND p.published = 1
		GROUP BY t.id, t.name
		ORDER BY post_count DESC, t.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying tags: %w", err)
	}
	defer rows.Close()

	tags := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	return tags, rows.Err()
}

func (s *Store) PostsByTag(tag string, publishedOnly bool) ([]*model.Post, error) {
	query := `
		SELECT ` + prefixedPostColumns("p") + `
		FROM posts p
		JOIN post_tags pt ON p.id = pt.post_id
		JOIN tags t ON pt.tag_id = t.id
		WHERE t.name = ?`
	if publishedOnly {
		query += ` AND p.published = 1`
	}
	query += ` ORDER BY p.created_at DESC`

	return s.queryPosts(query, tag)
}

// RelatedPosts recommends published posts for the target: relevance is twice
// the number of shared tags plus one for a matching category, ties broken by
// recency. When fewer than limit posts score above zero, the remainder is
// padded with the most recent published posts that scored zero, so the
// recommendation list is never sparse just because a post has few tags.
func (s *Store) RelatedPosts(postID model.PostID, tags []string, category string, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		return []*model.Post{}, nil
	}

	sharedTagsExpr := "0"
	args := []any{}
	if len(tags) > 0 {
		placeholders := strings.Repeat("?,", len(tags))
		placeholders = placeholders[:len(placeholders)-1]
		sharedTagsExpr = `(
			SELECT COUNT(DISTINCT t.name)
			FROM tags t
			JOIN post_tags pt ON pt.tag_id = t.id
			WHERE pt.post_id = p.id AND t.name IN (` + placeholders + `)
		)`
		for _, tag := range tags {
			args = append(args, tag)
		}
	}

	scoredQuery := `
		SELECT ` + prefixedPostColumns("p") + `,
		       ` + sharedTagsExpr + ` * 2 +
		       CASE WHEN p.category = ? AND p.category IS NOT NULL THEN 1 ELSE 0 END AS relevance_score
		FROM posts p
		WHERE p.id != ? AND p.published = 1
		GROUP BY p.id
		HAVING relevance_score > 0
		ORDER BY relevance_score DESC, p.created_at DESC
		LIMIT ?`
	scoredArgs := append(args, nullable(category), postID, limit)

	rows, err := s.db.Query(scoredQuery, scoredArgs...)
	if err != nil {
		return nil, fmt.Errorf("error querying related posts: %w", err)
	}

	posts := []*model.Post{}
	for rows.Next() {
		var post model.Post
		var excerpt, categoryCol sql.NullString
		var score int64

		err := rows.Scan(&post.ID, &post.StorageID, &post.Title, &post.Slug, &post.Content,
			&excerpt, &post.Author, &post.ContentHash,
			&post.CreatedAt, &post.UpdatedAt, &post.Published, &categoryCol, &score)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning related post: %w", err)
		}

		post.Excerpt = excerpt.String
		post.Category = categoryCol.String
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Pad with recent published posts, skipping anything eligible for a
	// positive score (those were either selected above or lost the cut).
	if len(posts) < limit {
		paddingQuery := `
			SELECT ` + postColumns + `
			FROM posts
			WHERE id != ? AND published = 1
			  AND id NOT IN (
			      SELECT p2.id
			      FROM posts p2
			      WHERE p2.id != ? AND p2.published = 1
			        AND (` + existsSharedTagExpr(len(tags)) + `
			             OR (p2.category = ? AND p2.category IS NOT NULL))
			  )
			ORDER BY created_at DESC
			LIMIT ?`

		paddingArgs := []any{postID, postID}
		for _, tag := range tags {
			paddingArgs = append(paddingArgs, tag)
		}
		paddingArgs = append(paddingArgs, nullable(category), limit-len(posts))

		padding, err := s.queryPosts(paddingQuery, paddingArgs...)
		if err != nil {
			return nil, err
		}
		posts = append(posts, padding...)
	}

	for _, post := range posts {
		if post.Tags, err = s.loadTags(post.ID); err != nil {
			return nil, err
		}
	}

	return posts, nil
}

func existsSharedTagExpr(tagCount int) string {
	if tagCount == 0 {
		return "0"
	}
	placeholders := strings.Repeat("?,", tagCount)
	placeholders = placeholders[:len(placeholders)-1]
	return `EXISTS (
		SELECT 1 FROM post_tags pt
		JOIN tags t ON pt.tag_id = t.id
		WHERE pt.post_id = p2.id AND t.name IN (` + placeholders + `)
	)`
}
