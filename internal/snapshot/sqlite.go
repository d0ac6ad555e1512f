package snapshot

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Schema for the kv table. Call SQLiteKV.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteKV stores key-value pairs in a local sqlite file, the server-side
// analogue of the browser's local storage.
type SQLiteKV struct {
	db *sql.DB
}

// OpenSQLiteKV opens (or creates) the sqlite store at path and ensures the
// schema exists.
func OpenSQLiteKV(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	kv := &SQLiteKV{db: db}
	if err := kv.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

// Init creates the kv table if it doesn't exist.
func (s *SQLiteKV) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *SQLiteKV) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
