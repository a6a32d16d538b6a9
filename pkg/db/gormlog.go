package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

// gormLog routes GORM's logging through the service logger: failed and slow
// statements at warn, everything else at debug when query logging is on.
type gormLog struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newGormLogger(logg *logger.Logger, cfg config.DBConfig) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}
	return gormLog{logg: logg, slow: cfg.SlowQuery, level: level}
}

func (g gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	g.level = level
	return g
}

func (g gormLog) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g gormLog) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g gormLog) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
	}
}

func (g gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var msg string
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		msg = "db.query.failed"
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		msg = "db.query.slow"
	case g.level >= gormlogger.Info:
		msg = "db.query"
	default:
		return
	}

	sql, rows := fc()
	fields := map[string]any{
		"sql":        sql,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	ctx = g.logg.WithFields(ctx, fields)
	if msg == "db.query" {
		g.logg.Debug(ctx, msg)
		return
	}
	g.logg.Warn(ctx, msg)
}
