package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite persists messages in a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens the database at dbPath and applies pending migrations.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)
	for _, name := range names {
		version := strings.TrimSuffix(path.Base(name), ".sql")

		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) CreateMessage(ctx context.Context, in NewMessage) (*Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	msg := &Message{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		Content:   in.Content,
		Role:      in.Role,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, content, role, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ProjectID, msg.Content, msg.Role, msg.Type, msg.CreatedAt, msg.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if in.Fragment != nil {
		files := in.Fragment.Files
		if files == nil {
			files = map[string]string{}
		}
		raw, err := json.Marshal(files)
		if err != nil {
			return nil, fmt.Errorf("encode fragment files: %w", err)
		}
		f := &Fragment{
			ID:         uuid.NewString(),
			MessageID:  msg.ID,
			SandboxURL: in.Fragment.SandboxURL,
			Title:      in.Fragment.Title,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (id, message_id, sandbox_url, title, files, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.MessageID, f.SandboxURL, f.Title, string(raw), f.CreatedAt, f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("insert fragment: %w", err)
		}
		if err := json.Unmarshal(raw, &f.Files); err != nil {
			return nil, err
		}
		msg.Fragment = f
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func (s *SQLite) ListMessages(ctx context.Context, projectID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.project_id, m.content, m.role, m.type, m.created_at, m.updated_at,
		       f.id, f.sandbox_url, f.title, f.files, f.created_at, f.updated_at
		FROM messages m
		LEFT JOIN fragments f ON f.message_id = m.id
		WHERE ? = '' OR m.project_id = ?
		ORDER BY m.updated_at ASC, m.rowid ASC`, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                                 Message
			fragID, fragURL, fragTitle, files sql.NullString
			fragCreated, fragUpdated          sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Content, &m.Role, &m.Type, &m.CreatedAt, &m.UpdatedAt,
			&fragID, &fragURL, &fragTitle, &files, &fragCreated, &fragUpdated); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if fragID.Valid {
			f := &Fragment{
				ID:         fragID.String,
				MessageID:  m.ID,
				SandboxURL: fragURL.String,
				Title:      fragTitle.String,
				CreatedAt:  fragCreated.Time,
				UpdatedAt:  fragUpdated.Time,
			}
			if err := json.Unmarshal([]byte(files.String), &f.Files); err != nil {
				return nil, fmt.Errorf("decode fragment %s files: %w", f.ID, err)
			}
			m.Fragment = f
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
