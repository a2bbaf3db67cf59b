package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"workhub/internal/model"
)

// SQLite persists users, automation rules, and redeemed authorization codes
// across restarts. Conversation transcripts and the AI config stay in
// memory in this backend too: transcripts are deliberately ephemeral.
type SQLite struct {
	DB  *sql.DB
	mem *Memory
}

// Open opens/initializes the SQLite database with WAL and foreign keys,
// then migrates the schema.
func Open(dsn string, maxTurns int) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		// continue; non-fatal
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		// continue; non-fatal
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{DB: db, mem: NewMemory(maxTurns)}, nil
}

// Close closes the underlying DB.
func (s *SQLite) Close() error { return s.DB.Close() }

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			access_token TEXT NOT NULL,
			username TEXT,
			profile_pic TEXT,
			auth_code TEXT,
			last_login TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS rules (
			owner_id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			keyword TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS used_codes (
			code TEXT PRIMARY KEY,
			used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) PutUser(u model.PlatformUser) error {
	_, err := s.DB.Exec(`INSERT INTO users (id, platform, access_token, username, profile_pic, auth_code, last_login)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			platform=excluded.platform,
			access_token=excluded.access_token,
			username=excluded.username,
			profile_pic=excluded.profile_pic,
			auth_code=excluded.auth_code,
			last_login=excluded.last_login`,
		u.ID, u.Platform, u.AccessToken, u.Username, u.ProfilePic, u.AuthCode, u.LastLogin)
	return err
}

func (s *SQLite) GetUser(id string) (model.PlatformUser, error) {
	return s.scanUser(s.DB.QueryRow(`SELECT id, platform, access_token,
		COALESCE(username,''), COALESCE(profile_pic,''), COALESCE(auth_code,''), last_login
		FROM users WHERE id=?`, id))
}

func (s *SQLite) UserByAuthCode(code string) (model.PlatformUser, error) {
	return s.scanUser(s.DB.QueryRow(`SELECT id, platform, access_token,
		COALESCE(username,''), COALESCE(profile_pic,''), COALESCE(auth_code,''), last_login
		FROM users WHERE auth_code=? AND auth_code != ''`, code))
}

func (s *SQLite) scanUser(row *sql.Row) (model.PlatformUser, error) {
	var u model.PlatformUser
	var last time.Time
	err := row.Scan(&u.ID, &u.Platform, &u.AccessToken, &u.Username, &u.ProfilePic, &u.AuthCode, &last)
	if err == sql.ErrNoRows {
		return model.PlatformUser{}, ErrNotFound
	}
	if err != nil {
		return model.PlatformUser{}, err
	}
	u.LastLogin = last
	return u, nil
}

func (s *SQLite) CountUsers() (int, error) {
	var n int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *SQLite) PutRule(r model.AutomationRule) error {
	_, err := s.DB.Exec(`INSERT INTO rules (owner_id, post_id, keyword, response)
		VALUES (?,?,?,?)
		ON CONFLICT(owner_id) DO UPDATE SET
			post_id=excluded.post_id,
			keyword=excluded.keyword,
			response=excluded.response`,
		r.OwnerID, r.PostID, r.Keyword, r.Response)
	return err
}

func (s *SQLite) GetRule(ownerID string) (model.AutomationRule, error) {
	var r model.AutomationRule
	err := s.DB.QueryRow(`SELECT owner_id, post_id, keyword, response FROM rules WHERE owner_id=?`, ownerID).
		Scan(&r.OwnerID, &r.PostID, &r.Keyword, &r.Response)
	if err == sql.ErrNoRows {
		return model.AutomationRule{}, ErrNotFound
	}
	return r, err
}

// AllRules returns rules in insertion order (rowid order); the comment
// matcher depends on that ordering.
func (s *SQLite) AllRules() ([]model.AutomationRule, error) {
	rows, err := s.DB.Query(`SELECT owner_id, post_id, keyword, response FROM rules ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AutomationRule
	for rows.Next() {
		var r model.AutomationRule
		if err := rows.Scan(&r.OwnerID, &r.PostID, &r.Keyword, &r.Response); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) CountRules() (int, error) {
	var n int
	err := s.DB.QueryRow(`SELECT COUNT(*) FROM rules`).Scan(&n)
	return n, err
}

func (s *SQLite) MarkUsed(code string) (bool, error) {
	res, err := s.DB.Exec(`INSERT OR IGNORE INTO used_codes (code) VALUES (?)`, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *SQLite) AppendTurn(senderID string, t model.Turn) { s.mem.AppendTurn(senderID, t) }
func (s *SQLite) History(senderID string) []model.Turn     { return s.mem.History(senderID) }
func (s *SQLite) SetAIConfig(c model.AIConfig)             { s.mem.SetAIConfig(c) }
func (s *SQLite) AIConfig() model.AIConfig                 { return s.mem.AIConfig() }
