package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/justyntemme/shelf/internal/debug"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultHistoryLimit is how many search history entries are kept.
const DefaultHistoryLimit = 50

// Search types recorded in history and saved searches.
const (
	SearchTypeTags     = "tags"
	SearchTypeAdvanced = "advanced"
)

// ErrExists is returned by SaveSearch when the name is taken and overwrite
// was not requested.
var ErrExists = errors.New("saved search already exists")

// ErrNotFound is returned when a saved search does not exist.
var ErrNotFound = errors.New("saved search not found")

type HistoryEntry struct {
	Timestamp time.Time
	Type      string
	Criteria  string
	Count     int
}

type SavedSearch struct {
	Name      string
	Timestamp time.Time
	Type      string
	Criteria  string
	Results   []string
}

type EventType int

const (
	FetchHistory EventType = iota
	AddHistory
	ClearHistory
	FetchRecentFolders
	SaveRecentFolders
	FetchSettings
	SaveSetting
)

type Request struct {
	Op       EventType
	Type     string   // AddHistory: search type
	Criteria string   // AddHistory: search text
	Count    int      // AddHistory: result count
	Folders  []string // SaveRecentFolders
	Key      string
	Value    string
}

type Response struct {
	Op       EventType
	History  []HistoryEntry
	Folders  []string          // Recent folders, most recent first
	Settings map[string]string // Key-value settings
	Err      error
}

type DB struct {
	conn         *sql.DB
	HistoryLimit int
	RequestChan  chan Request
	ResponseChan chan Response
}

func NewDB() *DB {
	return &DB{
		HistoryLimit: DefaultHistoryLimit,
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
	}
}

// Open initializes the database connection and schema
func (d *DB) Open(dbPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at INTEGER NOT NULL,
			type TEXT NOT NULL,
			criteria TEXT NOT NULL,
			result_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saved_searches (
			name TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			type TEXT NOT NULL,
			criteria TEXT NOT NULL,
			results TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recent_folders (
			position INTEGER PRIMARY KEY,
			path TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return fmt.Errorf("create schema: %w", err)
		}
	}

	d.conn = db
	debug.Log(debug.STORE, "Open: %s", dbPath)
	return nil
}

// Start serves RequestChan until it is closed.
func (d *DB) Start() {
	for req := range d.RequestChan {
		switch req.Op {
		case FetchHistory:
			d.respondHistory()
		case AddHistory:
			if err := d.AddHistory(req.Type, req.Criteria, req.Count); err != nil {
				log.Printf("Store Error: %v", err)
			}
			d.respondHistory()
		case ClearHistory:
			if err := d.ClearHistory(); err != nil {
				log.Printf("Store Error: %v", err)
			}
			d.respondHistory()
		case FetchRecentFolders:
			d.respondFolders()
		case SaveRecentFolders:
			if err := d.SetRecentFolders(req.Folders); err != nil {
				log.Printf("Store Error: %v", err)
			}
			d.respondFolders()
		case FetchSettings:
			settings, err := d.Settings()
			d.ResponseChan <- Response{Op: FetchSettings, Settings: settings, Err: err}
		case SaveSetting:
			if err := d.SetSetting(req.Key, req.Value); err != nil {
				log.Printf("Store Error saving setting: %v", err)
			}
			settings, err := d.Settings()
			d.ResponseChan <- Response{Op: FetchSettings, Settings: settings, Err: err}
		}
	}
}

func (d *DB) respondHistory() {
	history, err := d.History()
	d.ResponseChan <- Response{Op: FetchHistory, History: history, Err: err}
}

func (d *DB) respondFolders() {
	folders, err := d.RecentFolders()
	d.ResponseChan <- Response{Op: FetchRecentFolders, Folders: folders, Err: err}
}

// AddHistory records a search and trims history to HistoryLimit entries.
func (d *DB) AddHistory(searchType, criteria string, count int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO search_history (created_at, type, criteria, result_count) VALUES (?, ?, ?, ?)",
		time.Now().UnixNano(), searchType, criteria, count,
	); err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	limit := d.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if _, err := tx.Exec(
		"DELETE FROM search_history WHERE id NOT IN (SELECT id FROM search_history ORDER BY id DESC LIMIT ?)",
		limit,
	); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

// History returns recorded searches, newest first.
func (d *DB) History() ([]HistoryEntry, error) {
	rows, err := d.conn.Query("SELECT created_at, type, criteria, result_count FROM search_history ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var ts int64
		var h HistoryEntry
		if err := rows.Scan(&ts, &h.Type, &h.Criteria, &h.Count); err != nil {
			return nil, err
		}
		h.Timestamp = time.Unix(0, ts)
		history = append(history, h)
	}
	return history, rows.Err()
}

func (d *DB) ClearHistory() error {
	_, err := d.conn.Exec("DELETE FROM search_history")
	return err
}

// SaveSearch stores s under s.Name. An existing name is only replaced when
// overwrite is true; otherwise ErrExists is returned.
func (d *DB) SaveSearch(s SavedSearch, overwrite bool) error {
	if s.Name == "" {
		return fmt.Errorf("save search: empty name")
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if s.Results == nil {
		s.Results = []string{}
	}
	results, err := json.Marshal(s.Results)
	if err != nil {
		return err
	}

	stmt := "INSERT INTO saved_searches (name, created_at, type, criteria, results) VALUES (?, ?, ?, ?, ?)"
	if overwrite {
		stmt = "INSERT OR REPLACE INTO saved_searches (name, created_at, type, criteria, results) VALUES (?, ?, ?, ?, ?)"
	} else if _, err := d.SavedSearch(s.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, s.Name)
	}

	if _, err := d.conn.Exec(stmt, s.Name, s.Timestamp.UnixNano(), s.Type, s.Criteria, string(results)); err != nil {
		return fmt.Errorf("save search %s: %w", s.Name, err)
	}
	debug.Log(debug.STORE, "SaveSearch: %s (%d results)", s.Name, len(s.Results))
	return nil
}

// SavedSearch returns the saved search called name, or ErrNotFound.
func (d *DB) SavedSearch(name string) (SavedSearch, error) {
	row := d.conn.QueryRow("SELECT name, created_at, type, criteria, results FROM saved_searches WHERE name = ?", name)
	s, err := scanSavedSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedSearch{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, err
}

// DeleteSavedSearch removes name and reports whether it existed.
func (d *DB) DeleteSavedSearch(name string) (bool, error) {
	res, err := d.conn.Exec("DELETE FROM saved_searches WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SavedSearches returns all saved searches ordered by name.
func (d *DB) SavedSearches() ([]SavedSearch, error) {
	rows, err := d.conn.Query("SELECT name, created_at, type, criteria, results FROM saved_searches ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedSearch
	for rows.Next() {
		s, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSavedSearch(row scanner) (SavedSearch, error) {
	var s SavedSearch
	var ts int64
	var results string
	if err := row.Scan(&s.Name, &ts, &s.Type, &s.Criteria, &results); err != nil {
		return SavedSearch{}, err
	}
	s.Timestamp = time.Unix(0, ts)
	if err := json.Unmarshal([]byte(results), &s.Results); err != nil {
		log.Printf("Warning: saved search %q has unreadable results: %v", s.Name, err)
		s.Results = nil
	}
	return s, nil
}

// RecentFolders returns the persisted recent folder list, most recent first.
func (d *DB) RecentFolders() ([]string, error) {
	rows, err := d.conn.Query("SELECT path FROM recent_folders ORDER BY position ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err == nil {
			folders = append(folders, path)
		}
	}
	return folders, rows.Err()
}

// SetRecentFolders replaces the persisted recent folder list.
func (d *DB) SetRecentFolders(folders []string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM recent_folders"); err != nil {
		return err
	}
	for i, p := range folders {
		if _, err := tx.Exec("INSERT INTO recent_folders (position, path) VALUES (?, ?)", i, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Settings returns all stored key-value settings.
func (d *DB) Settings() (map[string]string, error) {
	rows, err := d.conn.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err == nil {
			settings[key] = value
		}
	}
	return settings, rows.Err()
}

// Setting returns the value for key and whether it was set.
func (d *DB) Setting(key string) (string, bool) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Store Error reading setting %q: %v", key, err)
		}
		return "", false
	}
	return value, true
}

func (d *DB) SetSetting(key, value string) error {
	// Use INSERT OR REPLACE to upsert the setting
	_, err := d.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

func (d *DB) Close() {
	if d.conn != nil {
		d.conn.Close()
	}
}
