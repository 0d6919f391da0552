// Package audit is the control plane's append-only audit log (spec.md
// section 4.7). It is a leaf: every other component writes to it, none
// read from it synchronously. Grounded on the teacher's async buffered
// Writer, generalized from a schema-per-tenant flush target to a
// tenant_id-column insert, and extended with PII redaction and a durable
// S3 fallback channel the teacher doesn't need.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/telemetry"
)

// Source is AuditRecord.source.
type Source string

const (
	SourceAPI     Source = "api"
	SourceWorker  Source = "worker"
	SourceSystem  Source = "system"
	SourceWebhook Source = "webhook"
)

// Outcome is AuditRecord.outcome.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Entry represents a single audit record to be written. Metadata is
// redacted by Redact before Writer ever queues it.
type Entry struct {
	TenantID      uuid.UUID
	UserID        *uuid.UUID
	Action        string
	ResourceType  string
	ResourceID    uuid.UUID
	Metadata      map[string]any
	IPAddress     *netip.Addr
	UserAgent     *string
	CorrelationID string
	Source        Source
	Outcome       Outcome
	ErrorCode     string
	Timestamp     time.Time
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	entries  chan Entry
	fallback FallbackSink
	wg       sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing
// entries. fallback may be nil, in which case fallback writes are only
// logged, never durably persisted.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger, fallback FallbackSink) *Writer {
	return &Writer{pool: pool, logger: logger, entries: make(chan Entry, bufferSize), fallback: fallback}
}

// Start launches the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine flushes pending entries
// and exits when ctx is cancelled or Close is called.
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

// Log enqueues a redacted audit entry for async writing. It never blocks
// the caller; if the buffer is full a warning is logged and the entry is
// handed to the fallback sink instead of the database queue. It never fails
// the originating request.
func (w *Writer) Log(entry Entry) {
	entry.Metadata = Redact(entry.Metadata)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry", "action", entry.Action, "resource_type", entry.ResourceType)
		telemetry.AuditWriteFailures.Inc()
		w.writeFallback(entry, "buffer_full")
	}
}

// LogFromRequest extracts correlation id, IP, and user agent from the
// request and enqueues the entry.
func (w *Writer) LogFromRequest(r *http.Request, entry Entry) {
	if entry.CorrelationID == "" {
		entry.CorrelationID = r.Header.Get("X-Request-ID")
	}

	ip := clientIP(r)
	if ip.IsValid() {
		entry.IPAddress = &ip
	}

	ua := r.Header.Get("User-Agent")
	if ua != "" {
		entry.UserAgent = &ua
	}

	w.Log(entry)
}

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

// flush writes a batch of entries to the database. Any entry that fails to
// write falls back to the secondary durable channel instead of failing the
// request that originated it (spec.md section 3's universal invariant).
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		if err := w.insert(ctx, e); err != nil {
			w.logger.Error("writing audit log entry, falling back", "error", err, "action", e.Action, "resource_type", e.ResourceType)
			telemetry.AuditWriteFailures.Inc()
			w.writeFallback(e, err.Error())
		}
	}
}

func (w *Writer) insert(ctx context.Context, e Entry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}

	var userID any
	if e.UserID != nil {
		userID = *e.UserID
	}
	ip := ""
	if e.IPAddress != nil {
		ip = e.IPAddress.String()
	}
	ua := ""
	if e.UserAgent != nil {
		ua = *e.UserAgent
	}

	_, err = w.pool.Exec(ctx, `
		INSERT INTO audit_records
			(id, tenant_id, user_id, action, resource_type, resource_id, metadata,
			 ip, user_agent, correlation_id, source, outcome, error_code, "timestamp")
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		uuid.New(), e.TenantID, userID, e.Action, e.ResourceType, e.ResourceID, metadata,
		ip, ua, e.CorrelationID, e.Source, e.Outcome, e.ErrorCode, e.Timestamp,
	)
	return err
}

func (w *Writer) writeFallback(e Entry, reason string) {
	if w.fallback == nil {
		w.logger.Warn("audit fallback sink not configured, entry dropped", "action", e.Action, "reason", reason)
		return
	}
	if err := w.fallback.Write(context.Background(), e, reason); err != nil {
		w.logger.Error("audit fallback write failed", "error", err, "action", e.Action)
	}
}

func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
