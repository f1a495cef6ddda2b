package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rdmitry/taskvault/internal/config"
	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/migrations"
)

// DB wraps the sqlite connection used by the blob store.
type DB struct {
	*sql.DB
	logger *logger.Logger
}

// NewConnectSQLite opens (creating if necessary) the local sqlite database
// at cfg.DBPath, pings it, and applies pending migrations.
func NewConnectSQLite(ctx context.Context, cfg config.Storage, log *logger.Logger) (*DB, error) {
	if err := createLocalDBFileIfNotExists(cfg.DBPath); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file")
	}

	conn, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting database")
		return nil, fmt.Errorf("error opening connection to DB")
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("error connecting database (ping)")
		return nil, err
	}

	if err = migrations.Migrate(conn); err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("migration failed")
		return nil, err
	}
	log.Debug().Str("func", "NewConnectSQLite").Msg("connected to database successfully")

	return &DB{DB: conn, logger: log}, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}

// sqliteBlobStore is the sqlite-backed implementation of [BlobStore].
// Every value is written whole; there are no partial updates.
type sqliteBlobStore struct {
	db     *DB
	logger *logger.Logger
}

// NewBlobStore constructs a [BlobStore] over an open sqlite connection.
func NewBlobStore(db *DB, log *logger.Logger) BlobStore {
	return &sqliteBlobStore{db: db, logger: log}
}

func (s *sqliteBlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, getBlob, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		s.logger.Err(err).Str("key", key).Msg("failed to read blob")
		return nil, fmt.Errorf("get blob %q: %w", key, err)
	}

	return value, nil
}

func (s *sqliteBlobStore) SetBlob(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertBlob, key, value, time.Now().UTC()); err != nil {
		s.logger.Err(err).Str("key", key).Msg("failed to write blob")
		return fmt.Errorf("set blob %q: %w", key, err)
	}

	return nil
}

func (s *sqliteBlobStore) RemoveBlob(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteBlob, key); err != nil {
		s.logger.Err(err).Str("key", key).Msg("failed to remove blob")
		return fmt.Errorf("remove blob %q: %w", key, err)
	}

	return nil
}
