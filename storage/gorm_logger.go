package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/weekorder/weekorder/core"
)

const slowQueryThreshold = 200 * time.Millisecond

// queryLogger routes gorm's log output into core.Logger.
type queryLogger struct {
	logger core.Logger
	level  gormlogger.LogLevel
}

func newQueryLogger(logger core.Logger, logQueries bool) *queryLogger {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return &queryLogger{logger: core.WithComponent(logger, "storage/gorm"), level: level}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.InfoWithContext(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnWithContext(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorWithContext(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

// Trace logs failed and slow statements; every statement when query logging is on.
// Not-found lookups are expected and not logged as failures.
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := map[string]interface{}{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		fields["error"] = err.Error()
		l.logger.ErrorWithContext(ctx, "Query failed", fields)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		l.logger.WarnWithContext(ctx, "Slow query", fields)
	case l.level >= gormlogger.Info:
		l.logger.DebugWithContext(ctx, "Query", fields)
	}
}
