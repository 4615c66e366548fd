package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() keeps parallel tests isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// insertCredential writes a corpus row the way the ingestion pipeline would.
func insertCredential(t *testing.T, db *DB, deviceID, rawURL, domain, login, password string) {
	t.Helper()

	const query = `
		INSERT INTO credentials (device_id, upload_batch, url, domain, login, password, browser, created_at)
		VALUES (?, 'batch-1', ?, ?, ?, ?, 'Chrome', ?)
	`
	_, err := db.Writer.ExecContext(context.Background(), query,
		deviceID, rawURL, domain, login, password, formatTime(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)),
	)
	if err != nil {
		t.Fatalf("insert credential: %v", err)
	}
}

// testKey is a fixed 32-byte AES-256 key for webhook secret tests.
var testKey = []byte("0123456789abcdef0123456789abcdef")
