// Package pgstore persists sessions in PostgreSQL using pgx.
//
// The schema lives in the embedded Migrations filesystem and is applied with
// integration/database/pg.Migrate:
//
//	err := pg.Migrate(ctx, pool, cfg, log, pg.WithMigrationsFS(pgstore.Migrations))
//
// with cfg.MigrationsPath set to pgstore.MigrationsDir. JSON columns tolerate
// values written by older releases: null or string-encoded documents are read
// as empty lists or unwrapped.
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/sessionguard/core/security"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/integration/database/pg"
)

// Migrations holds the goose migrations of the user_sessions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the files.
const MigrationsDir = "migrations"

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a session.Store backed by the user_sessions table.
// A transaction attached with pg.WithTx is used instead of the pool.
type Store struct {
	db DB
}

var _ session.Store = (*Store)(nil)

// New creates a store.
func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) DB {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

const columns = `session_id, user_id, username, role, ip_address, user_agent, device_fingerprint,
	login_time, last_activity, expires_at, logout_time, logout_reason, status, risk_score,
	location_data, session_metadata, security_events, activity_log, anomaly_flags,
	version, updated_at`

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+columns+` FROM user_sessions WHERE session_id = $1`, id)
	sess, err := scan(row)
	if pg.IsNotFoundError(err) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

// Create implements session.Store.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	doc, err := encode(sess)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `INSERT INTO user_sessions (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		sess.ID, sess.UserID, sess.Username, sess.Role, sess.IPAddress, sess.UserAgent, sess.DeviceFingerprint,
		sess.LoginTime, sess.LastActivity, sess.ExpiresAt, sess.LogoutTime, nullable(sess.LogoutReason),
		string(sess.Status), sess.RiskScore,
		doc.location, doc.metadata, doc.events, doc.activity, doc.anomalies,
		sess.Version, sess.UpdatedAt,
	)
	return err
}

// Update implements session.Store. Identity columns, login_time and
// expires_at are never rewritten.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	doc, err := encode(sess)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		tag, err := db.Exec(ctx, `UPDATE user_sessions SET
				last_activity = $2, logout_time = $3, logout_reason = $4, status = $5, risk_score = $6,
				location_data = $7, session_metadata = $8, security_events = $9, activity_log = $10,
				anomaly_flags = $11, updated_at = $12, version = version + 1
			WHERE session_id = $1 AND version = $13`,
			sess.ID, sess.LastActivity, sess.LogoutTime, nullable(sess.LogoutReason), string(sess.Status), sess.RiskScore,
			doc.location, doc.metadata, doc.events, doc.activity, doc.anomalies,
			sess.UpdatedAt, sess.Version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM user_sessions WHERE session_id = $1)`, sess.ID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return session.ErrNotFound
			}
			return session.ErrVersionConflict
		}
		sess.Version++
		return nil
	})
}

// inTx runs fn in a transaction when the underlying DB can begin one.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if b, ok := s.db.(pg.TxBeginner); ok {
		return pg.InTx(ctx, b, fn)
	}
	return fn(ctx)
}

// CountActive implements session.Store.
func (s *Store) CountActive(ctx context.Context, username string) (int, error) {
	var n int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM user_sessions WHERE username = $1 AND status = 'active'`, username,
	).Scan(&n)
	return n, err
}

// OldestActive implements session.Store.
func (s *Store) OldestActive(ctx context.Context, username string) (*session.Session, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+columns+` FROM user_sessions
		WHERE username = $1 AND status = 'active'
		ORDER BY last_activity ASC, login_time ASC, session_id ASC
		LIMIT 1`, username)
	sess, err := scan(row)
	if pg.IsNotFoundError(err) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

// ExpireIdle implements session.Store.
func (s *Store) ExpireIdle(ctx context.Context, idleBefore, now time.Time) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE user_sessions
		SET status = 'expired', logout_time = $2, updated_at = $2, version = version + 1
		WHERE status = 'active' AND last_activity < $1`, idleBefore, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeTerminated implements session.Store.
func (s *Store) PurgeTerminated(ctx context.Context, cutoff time.Time) ([]*session.Session, error) {
	rows, err := s.conn(ctx).Query(ctx, `DELETE FROM user_sessions
		WHERE status <> 'active' AND COALESCE(logout_time, updated_at) < $1
		RETURNING `+columns, cutoff)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListCreatedSince implements session.Store.
func (s *Store) ListCreatedSince(ctx context.Context, since time.Time) ([]*session.Session, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT `+columns+` FROM user_sessions
		WHERE login_time >= $1 ORDER BY login_time ASC, session_id ASC`, since)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*session.Session, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*session.Session, error) {
		return scan(row)
	})
}

func scan(row pgx.Row) (*session.Session, error) {
	var (
		sess                                            session.Session
		status                                          string
		logoutReason                                    *string
		location, metadata, events, activity, anomalies []byte
	)
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Username, &sess.Role, &sess.IPAddress, &sess.UserAgent, &sess.DeviceFingerprint,
		&sess.LoginTime, &sess.LastActivity, &sess.ExpiresAt, &sess.LogoutTime, &logoutReason, &status, &sess.RiskScore,
		&location, &metadata, &events, &activity, &anomalies,
		&sess.Version, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Status = session.Status(status)
	if logoutReason != nil {
		sess.LogoutReason = *logoutReason
	}
	sess.Location = passThrough(location)
	sess.Metadata = decodeObject[session.Metadata](metadata)
	sess.SecurityEvents = decodeList[security.Event](events)
	sess.ActivityLog = decodeList[session.Activity](activity)
	sess.AnomalyFlags = decodeList[security.Anomaly](anomalies)
	return &sess, nil
}

type document struct {
	location, metadata, events, activity, anomalies []byte
}

func encode(sess *session.Session) (document, error) {
	var (
		doc  document
		errs []error
	)
	marshalList := func(v any, n int) []byte {
		if n == 0 {
			return emptyArray
		}
		b, err := json.Marshal(v)
		errs = append(errs, err)
		return b
	}
	if len(sess.Location) > 0 {
		doc.location = sess.Location
	}
	md, err := json.Marshal(sess.Metadata)
	errs = append(errs, err)
	doc.metadata = md
	doc.events = marshalList(sess.SecurityEvents, len(sess.SecurityEvents))
	doc.activity = marshalList(sess.ActivityLog, len(sess.ActivityLog))
	doc.anomalies = marshalList(sess.AnomalyFlags, len(sess.AnomalyFlags))
	return doc, errors.Join(errs...)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
