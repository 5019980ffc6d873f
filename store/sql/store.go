package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	dbFilename = "sqlite.db"
)

//go:embed migration/*
var migrations embed.FS

// DB is the shared handle passed to the sql-backed stores.
type DB = *sql.DB

// OpenDb opens (and migrates) the sqlite database under the given directory.
func OpenDb(baseDir string) (DB, error) {
	if len(baseDir) == 0 {
		return nil, fmt.Errorf("missing base directory")
	}

	db, err := sql.Open(driverName, filepath.Join(baseDir, dbFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %s", err)
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to init migration driver: %s", err)
	}

	source, err := iofs.New(migrations, "migration")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %s", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to init migrations: %s", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to run migrations: %s", err)
	}

	return db, nil
}

func execTx(ctx context.Context, db *sql.DB, txBody func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint
	defer tx.Rollback()

	if err := txBody(tx); err != nil {
		return err
	}

	return tx.Commit()
}
