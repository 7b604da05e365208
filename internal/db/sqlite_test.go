package db

import (
	"sync"
	"testing"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()

	database := NewSQLite(":memory:")
	if err := database.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestInitDBCreatesSchema(t *testing.T) {
	database := newTestDB(t)

	for _, table := range []string{"posts", "tags", "post_tags", "posts_fts"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

// Running the schema statements again on an existing database must neither
// fail nor clobber data.
func TestInitDBIsIdempotent(t *testing.T) {
	database := reinitDatabase(t)

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		t.Fatalf("querying after reinit: %v", err)
	}
	if count != 1 {
		t.Errorf("row count after reinit = %d, want 1", count)
	}
}

func reinitDatabase(t *testing.T) *SQLite {
	t.Helper()

	path := t.TempDir() + "/reinit.db"
	database := NewSQLite(path)
	if err := database.InitDB(); err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	_, err := database.Exec(`
		INSERT INTO posts (id, storage_id, title, slug, content, author, content_hash, created_at, updated_at, published)
		VALUES ('p1', 's1', 'T', 't', 'c', 'a', 'h1', datetime('now'), datetime('now'), 0)`)
	if err != nil {
		t.Fatalf("inserting row: %v", err)
	}
	database.Close()

	database = NewSQLite(path)
	if err := database.InitDB(); err != nil {
		t.Fatalf("second InitDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// A ":memory:" database must stay visible across concurrent callers; a pool
// of independent connections would each see their own empty database.
func TestMemoryDatabaseSharedAcrossCallers(t *testing.T) {
	database := newTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var name string
			if err := database.QueryRow(
				`SELECT name FROM sqlite_master WHERE name = 'posts'`).Scan(&name); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent caller lost the schema: %v", err)
	}
}

func TestContentHashUniqueIndex(t *testing.T) {
	database := newTestDB(t)

	insert := `
		INSERT INTO posts (id, storage_id, title, slug, content, author, content_hash, created_at, updated_at, published)
		VALUES (?, ?, 'T', 't', 'c', 'a', ?, datetime('now'), datetime('now'), 0)`

	if _, err := database.Exec(insert, "p1", "s1", "same-hash"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := database.Exec(insert, "p2", "s2", "same-hash"); err == nil {
		t.Error("duplicate content_hash accepted")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	database := newTestDB(t)

	_, err := database.Exec(`INSERT INTO post_tags (post_id, tag_id) VALUES ('ghost', 99)`)
	if err == nil {
		t.Error("dangling tag association accepted")
	}
}

func TestFTSTriggersStayInSync(t *testing.T) {
	database := newTestDB(t)

	_, err := database.Exec(`
		INSERT INTO posts (id, storage_id, title, slug, content, author, content_hash, created_at, updated_at, published)
		VALUES ('p1', 's1', 'Searchable', 'searchable', 'findable words', 'a', 'h1', datetime('now'), datetime('now'), 0)`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	var count int
	if err := database.QueryRow(
		`SELECT COUNT(*) FROM posts_fts WHERE posts_fts MATCH 'findable'`).Scan(&count); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if count != 1 {
		t.Errorf("fts match count = %d, want 1", count)
	}

	if _, err := database.Exec(`DELETE FROM posts WHERE id = 'p1'`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := database.QueryRow(
		`SELECT COUNT(*) FROM posts_fts WHERE posts_fts MATCH 'findable'`).Scan(&count); err != nil {
		t.Fatalf("fts query after delete: %v", err)
	}
	if count != 0 {
		t.Errorf("fts still matches deleted row: count = %d", count)
	}
}
