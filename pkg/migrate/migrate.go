package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/sportsarena/membership-backend/pkg/migrate/migrations"
)

// SourceDir is where the migrations live relative to the repository root.
const SourceDir = "pkg/migrate/migrations"

const dialect = "postgres"

// goose keeps its dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Source is a set of goose migrations rooted at Dir inside FS.
type Source struct {
	FS  fs.FS
	Dir string
}

// Embedded returns the migrations compiled into the binary.
func Embedded() Source {
	return Source{FS: migrations.FS, Dir: "."}
}

// Disk reads migrations from a directory on the local filesystem.
func Disk(dir string) Source {
	return Source{FS: os.DirFS(dir), Dir: "."}
}

func (s Source) with(fn func(dir string) error) error {
	if s.FS == nil {
		return errors.New("migration source is required")
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(s.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn(dir)
}

// Run executes a goose command (up, down, status, redo, ...) against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	return src.with(func(dir string) error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateTo moves the schema up or down until it sits at target.
func MigrateTo(ctx context.Context, db *sql.DB, src Source, target int64) error {
	if db == nil {
		return errors.New("db is required")
	}
	return src.with(func(dir string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			err = goose.UpToContext(ctx, db, dir, target)
		default:
			err = goose.DownToContext(ctx, db, dir, target)
		}
		if err != nil {
			return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
		}
		return nil
	})
}

// CurrentVersion reports the version recorded in the goose table.
func CurrentVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errors.New("db is required")
	}
	var version int64
	err := Embedded().with(func(string) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		version = v
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return version, nil
}

// ParseVersion accepts a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	if !versionRe.MatchString(raw) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return strconv.ParseInt(raw, 10, 64)
}
