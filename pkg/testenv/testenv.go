// Package testenv provides in-memory databases and a recording logger for
// tests across dualstore packages.
package testenv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	logslog "github.com/surrealdb/dualstore/pkg/logger/slog"
	"github.com/surrealdb/dualstore/pkg/store/gormstore"
)

var dbCounter atomic.Int64

// NewSQLite opens a private in-memory SQLite database, migrates models into
// it and closes it when the test ends.
func NewSQLite(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	db, err := gormstore.OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
	}
	t.Cleanup(func() {
		_ = gormstore.Close(db)
	})
	return db
}

// Entry is one recorded log call. Args holds the record's attributes as
// alternating keys and values, in the order they were logged.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

type entryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// RecordingHandler is a slog.Handler that keeps every record in memory.
type RecordingHandler struct {
	log   *entryLog
	attrs []any
}

func (h *RecordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

//nolint:gocritic
func (h *RecordingHandler) Handle(_ context.Context, r slog.Record) error {
	args := append([]any(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		args = append(args, a.Key, a.Value.Any())
		return true
	})

	h.log.mu.Lock()
	defer h.log.mu.Unlock()
	h.log.entries = append(h.log.entries, Entry{
		Level: strings.ToLower(r.Level.String()),
		Msg:   r.Message,
		Args:  args,
	})
	return nil
}

func (h *RecordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &RecordingHandler{log: h.log, attrs: append([]any(nil), h.attrs...)}
	for _, a := range attrs {
		next.attrs = append(next.attrs, a.Key, a.Value.Any())
	}
	return next
}

// WithGroup is a no-op; recorded keys are never qualified.
func (h *RecordingHandler) WithGroup(string) slog.Handler {
	return h
}

// RecordingLogger is a logger.Logger backed by a RecordingHandler.
type RecordingLogger struct {
	*logslog.SlogHandler
	log *entryLog
}

func NewRecordingLogger() *RecordingLogger {
	entries := &entryLog{}
	return &RecordingLogger{
		SlogHandler: logslog.New(&RecordingHandler{log: entries}),
		log:         entries,
	}
}

// Entries returns a copy of everything logged so far.
func (r *RecordingLogger) Entries() []Entry {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	out := make([]Entry, len(r.log.entries))
	copy(out, r.log.entries)
	return out
}

// Messages returns the messages logged at level, in order.
func (r *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}
