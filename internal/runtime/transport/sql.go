package transport

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	"github.com/drblury/mediaflow/internal/runtime/envelope"
	errspkg "github.com/drblury/mediaflow/internal/runtime/errors"
	"github.com/drblury/mediaflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// DefaultSQLPollInterval is how often Receive re-queries an empty table while
// waiting.
const DefaultSQLPollInterval = 100 * time.Millisecond

type sqlDialect struct {
	driver     string
	idColumn   string
	lockClause string
	positional bool
}

var (
	sqliteDialect = sqlDialect{
		driver:   "sqlite3",
		idColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = sqlDialect{
		driver:     "postgres",
		idColumn:   "id BIGSERIAL PRIMARY KEY",
		lockClause: " FOR UPDATE SKIP LOCKED",
		positional: true,
	}
)

// rebind rewrites ? placeholders to $n for drivers that need it.
func (d sqlDialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d sqlDialect) schema() string {
	return `
	CREATE TABLE IF NOT EXISTS mediaflow_messages (
		` + d.idColumn + `,
		message_id TEXT NOT NULL UNIQUE,
		topic TEXT NOT NULL,
		body TEXT NOT NULL,
		visible_at BIGINT NOT NULL,
		receive_count INTEGER NOT NULL DEFAULT 0,
		receipt_handle TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_mediaflow_messages_visible ON mediaflow_messages(topic, visible_at);
	CREATE INDEX IF NOT EXISTS idx_mediaflow_messages_handle ON mediaflow_messages(receipt_handle);
	`
}

// SQLQueue is a durable queue in a single table. It is both a topic backend
// and a queue backend: Publish inserts rows and Receive claims rows whose
// visibility time has passed. Visibility is stored as unix milliseconds.
type SQLQueue struct {
	db           *sql.DB
	dialect      sqlDialect
	topic        string
	pollInterval time.Duration
	visibility   time.Duration
	now          func() time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// SQLOption customizes an SQLQueue.
type SQLOption func(*SQLQueue)

// WithPollInterval overrides DefaultSQLPollInterval.
func WithPollInterval(d time.Duration) SQLOption {
	return func(q *SQLQueue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithSQLVisibilityTimeout sets how long a received row stays hidden when
// the consumer neither deletes it nor changes its visibility.
func WithSQLVisibilityTimeout(d time.Duration) SQLOption {
	return func(q *SQLQueue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// WithSQLClock replaces time.Now.
func WithSQLClock(now func() time.Time) SQLOption {
	return func(q *SQLQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewSQLiteQueue opens (or creates) the database at path. Use ":memory:" for
// a throwaway queue. An empty topic receives from every topic.
func NewSQLiteQueue(path, topic string, opts ...SQLOption) (*SQLQueue, error) {
	if path == "" {
		path = "mediaflow_queue.db"
	}
	db, err := sql.Open(sqliteDialect.driver, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newSQLQueue(db, sqliteDialect, topic, opts...)
}

// NewPostgresQueue connects with a lib/pq connection string.
func NewPostgresQueue(dsn, topic string, opts ...SQLOption) (*SQLQueue, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLQueue(db, postgresDialect, topic, opts...)
}

func newSQLQueue(db *sql.DB, dialect sqlDialect, topic string, opts ...SQLOption) (*SQLQueue, error) {
	q := &SQLQueue{
		db:           db,
		dialect:      dialect,
		topic:        topic,
		pollInterval: DefaultSQLPollInterval,
		visibility:   DefaultVisibilityTimeout,
		now:          time.Now,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if _, err := db.Exec(dialect.schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return q, nil
}

func (q *SQLQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *SQLQueue) millis(d time.Duration) int64 {
	return q.now().Add(d).UnixMilli()
}

func (q *SQLQueue) exec(ctx context.Context, query string, args ...any) (int64, error) {
	if q.isClosed() {
		return 0, errspkg.ErrTransportClosed
	}
	res, err := q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Publish inserts body as an immediately visible row.
func (q *SQLQueue) Publish(ctx context.Context, topic, body string) (string, error) {
	id := ids.CreateULID()
	_, err := q.exec(ctx, `
		INSERT INTO mediaflow_messages (message_id, topic, body, visible_at, receive_count)
		VALUES (?, ?, ?, ?, 0)
	`, id, topic, body, q.millis(0))
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

// Receive claims up to maxMessages visible rows, polling until waitSeconds
// have passed when none are available.
func (q *SQLQueue) Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]consumer.RawMessage, error) {
	deadline := time.Now().Add(time.Duration(waitSeconds) * time.Second)
	for {
		if q.isClosed() {
			return nil, errspkg.ErrTransportClosed
		}
		raws, err := q.claim(ctx, maxMessages)
		if err != nil || len(raws) > 0 {
			return raws, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(q.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.closed:
			timer.Stop()
			return nil, errspkg.ErrTransportClosed
		case <-timer.C:
		}
	}
}

type claimedRow struct {
	id       int64
	msgID    string
	body     string
	receives int
}

func (q *SQLQueue) claim(ctx context.Context, maxMessages int32) ([]consumer.RawMessage, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT id, message_id, body, receive_count FROM mediaflow_messages WHERE visible_at <= ?`
	args := []any{q.millis(0)}
	if q.topic != "" {
		query += ` AND topic = ?`
		args = append(args, q.topic)
	}
	query += ` ORDER BY id ASC LIMIT ?` + q.dialect.lockClause
	args = append(args, maxMessages)

	rows, err := tx.QueryContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	var claimed []claimedRow
	for rows.Next() {
		var row claimedRow
		if err := rows.Scan(&row.id, &row.msgID, &row.body, &row.receives); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		claimed = append(claimed, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	hiddenUntil := q.millis(q.visibility)
	update := q.dialect.rebind(`
		UPDATE mediaflow_messages
		SET receipt_handle = ?, receive_count = receive_count + 1, visible_at = ?
		WHERE id = ?
	`)
	raws := make([]consumer.RawMessage, 0, len(claimed))
	for _, row := range claimed {
		handle := ids.CreateULID()
		if _, err := tx.ExecContext(ctx, update, handle, hiddenUntil, row.id); err != nil {
			return nil, fmt.Errorf("failed to lock message: %w", err)
		}
		raws = append(raws, consumer.RawMessage{
			ID:                      row.msgID,
			ReceiptHandle:           handle,
			Body:                    row.body,
			Checksum:                envelope.Checksum(row.body),
			ApproximateReceiveCount: row.receives + 1,
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lock: %w", err)
	}
	return raws, nil
}

func (q *SQLQueue) Delete(ctx context.Context, receiptHandle string) error {
	n, err := q.exec(ctx, `DELETE FROM mediaflow_messages WHERE receipt_handle = ?`, receiptHandle)
	if err != nil {
		return err
	}
	if n == 0 {
		return errspkg.ErrInvalidReceiptHandle
	}
	return nil
}

func (q *SQLQueue) ChangeVisibility(ctx context.Context, receiptHandle string, timeoutSeconds int32) error {
	visibleAt := q.millis(time.Duration(max(timeoutSeconds, 0)) * time.Second)
	n, err := q.exec(ctx, `UPDATE mediaflow_messages SET visible_at = ? WHERE receipt_handle = ?`, visibleAt, receiptHandle)
	if err != nil {
		return err
	}
	if n == 0 {
		return errspkg.ErrInvalidReceiptHandle
	}
	return nil
}

// PendingCount returns the number of rows for topic, visible or not.
func (q *SQLQueue) PendingCount(ctx context.Context, topic string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, q.dialect.rebind(`SELECT COUNT(*) FROM mediaflow_messages WHERE topic = ?`), topic).Scan(&count)
	return count, err
}

// Close closes the database. Calling it again is a no-op.
func (q *SQLQueue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.closed)
		err = q.db.Close()
	})
	return err
}

func sqlTransport(queue *SQLQueue) Transport {
	t := Transport{Topics: queue, Queue: queue}
	t.onClose(queue.Close)
	return t
}

func sqliteTransport(_ context.Context, conf *config.Config, _ loggingpkg.ServiceLogger) (Transport, error) {
	queue, err := NewSQLiteQueue(conf.SQLiteFile, conf.SubscribeTopic)
	if err != nil {
		return Transport{}, err
	}
	return sqlTransport(queue), nil
}

func postgresTransport(_ context.Context, conf *config.Config, _ loggingpkg.ServiceLogger) (Transport, error) {
	queue, err := NewPostgresQueue(conf.PostgresURL, conf.SubscribeTopic)
	if err != nil {
		return Transport{}, err
	}
	return sqlTransport(queue), nil
}
