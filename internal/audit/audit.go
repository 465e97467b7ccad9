// Package audit is the durable, append-only record of every lifecycle
// transition a command passes through (queued, executing, completed,
// failed). Writes are async and buffered so the scheduling path never
// blocks on Postgres (invariant I9).
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a single audit log entry to be written.
type Entry struct {
	ExecutionID string
	CommandID   string
	UserID      string
	Phase       string
	Detail      string
	CreatedAt   time.Time
}

// Writer is an async, buffered audit log writer.
// Entries are sent to an internal channel and flushed by a background goroutine.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the database.
// It returns when the context is cancelled and all pending entries are flushed.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues one lifecycle transition for async writing. It implements
// the AuditSink interface shared by pkg/worker and pkg/chatapi and never
// blocks the caller: if the buffer is full, the entry is dropped and a
// warning is logged.
func (w *Writer) Log(phase, executionID, commandID, userID, detail string) {
	entry := Entry{
		ExecutionID: executionID,
		CommandID:   commandID,
		UserID:      userID,
		Phase:       phase,
		Detail:      detail,
		CreatedAt:   time.Now(),
	}

	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"phase", phase, "execution_id", executionID)
	}
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				// Channel closed — flush remaining and exit.
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// Drain any remaining entries.
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the audit_log table.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		w.logger.Error("acquiring connection for audit flush", "error", err)
		return
	}
	defer conn.Release()

	for _, e := range entries {
		_, err := conn.Exec(ctx,
			`INSERT INTO audit_log (id, execution_id, command_id, user_id, phase, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), e.ExecutionID, nullIfEmpty(e.CommandID), nullIfEmpty(e.UserID), e.Phase, e.Detail, e.CreatedAt,
		)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"phase", e.Phase, "execution_id", e.ExecutionID)
		}
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
