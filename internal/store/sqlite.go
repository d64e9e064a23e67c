package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
	"gallery-go/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements gallery.ItemStore on SQLite. Each conditional
// write runs in its own transaction that checks the precondition first.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite store.
// path can be a file path or ":memory:" for an in-memory database.
// The schema is not migrated; see MigrateUp and CheckMigrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection: SQLite allows a single writer, and
// every connection to ":memory:" would otherwise see its own empty database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Item operations

func (s *SQLiteStore) UpdateItem(ctx context.Context, update model.ItemUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE items
			    SET content_type = ?,
			        capture_time = COALESCE(capture_time, ?)
			  WHERE content_hash = ?`,
			update.ContentType, nullInt64(update.CaptureTime), update.ContentHash)
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}

		if update.Location != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO item_locations (content_hash, location_key) VALUES (?, ?)`,
				update.ContentHash, update.Location); err != nil {
				return fmt.Errorf("adding item location: %w", err)
			}
		}
		if update.Album != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO item_albums (content_hash, album_id) VALUES (?, ?)`,
				update.ContentHash, update.Album); err != nil {
				return fmt.Errorf("adding item album: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertItem(ctx context.Context, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (content_hash) VALUES (?) ON CONFLICT (content_hash) DO NOTHING`,
		contentHash)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) AddItemAlbum(ctx context.Context, contentHash, album string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE content_hash = ?`, contentHash).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return gallery.ErrConditionFailed
		}
		if err != nil {
			return fmt.Errorf("checking item: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_albums (content_hash, album_id) VALUES (?, ?)`,
			contentHash, album); err != nil {
			return fmt.Errorf("adding item album: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetItem(ctx context.Context, contentHash string) (*model.Item, error) {
	item := &model.Item{ContentHash: contentHash}
	var captureTime sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, capture_time FROM items WHERE content_hash = ?`,
		contentHash).Scan(&item.ContentType, &captureTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if captureTime.Valid {
		item.CaptureTime = &captureTime.Int64
	}

	item.Locations, err = s.queryStrings(ctx,
		`SELECT location_key FROM item_locations WHERE content_hash = ? ORDER BY location_key`, contentHash)
	if err != nil {
		return nil, fmt.Errorf("finding item locations: %w", err)
	}
	item.Albums, err = s.queryStrings(ctx,
		`SELECT album_id FROM item_albums WHERE content_hash = ? ORDER BY album_id`, contentHash)
	if err != nil {
		return nil, fmt.Errorf("finding item albums: %w", err)
	}
	return item, nil
}

// Album operations

func (s *SQLiteStore) PutMembership(ctx context.Context, album, contentHash string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO album_members (album_id, content_hash) VALUES (?, ?)`,
		album, contentHash); err != nil {
		return fmt.Errorf("adding album member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RegisterAlbum(ctx context.Context, album string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO albums (album_id) VALUES (?)`, album); err != nil {
		return fmt.Errorf("registering album: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAlbums(ctx context.Context) ([]string, error) {
	albums, err := s.queryStrings(ctx, `SELECT album_id FROM albums ORDER BY album_id`)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	return albums, nil
}

func (s *SQLiteStore) ListAlbumMembers(ctx context.Context, album string) ([]string, error) {
	members, err := s.queryStrings(ctx,
		`SELECT content_hash FROM album_members WHERE album_id = ? ORDER BY content_hash`, album)
	if err != nil {
		return nil, fmt.Errorf("listing album members: %w", err)
	}
	return members, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// requireRow turns "no row was affected" into gallery.ErrConditionFailed.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return gallery.ErrConditionFailed
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Compile-time check that SQLiteStore implements gallery.ItemStore
var _ gallery.ItemStore = (*SQLiteStore)(nil)
