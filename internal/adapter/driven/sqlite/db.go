package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath selects an in-memory database that lives until the DB is closed.
const MemoryPath = ":memory:"

const (
	pragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)"

	maxWriterConns = 1
	maxReaderConns = 4
)

// DB provides dual reader/writer database connections. The writer is limited
// to a single connection to avoid "database is locked" errors; the reader
// pool allows up to 4 concurrent readers.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database file at dbPath in WAL mode, creating its parent
// directory when missing. MemoryPath opens an in-memory database instead.
func NewDB(dbPath string) (*DB, error) {
	if dbPath == MemoryPath {
		return NewMemoryDB("travelerpub")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	return open(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", dbPath, pragmas), dbPath)
}

// NewMemoryDB opens a named shared-cache in-memory database. Both pools see
// the same data; databases with different names are isolated. WAL does not
// apply to memory databases.
func NewMemoryDB(name string) (*DB, error) {
	// The name is escaped so it cannot be read as DSN query parameters.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), pragmas)
	return open(dsn, MemoryPath)
}

func open(dsn, path string) (*DB, error) {
	writer, err := openPool(dsn, maxWriterConns)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(dsn, maxReaderConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func openPool(dsn string, maxOpen int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxOpen)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Path returns the database file path, or MemoryPath.
func (db *DB) Path() string {
	return db.path
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
