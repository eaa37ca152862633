package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"breadcrumbs/internal/config"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps entries in a PostgreSQL table of (key, value, expires_at) rows.
// Expired rows read as absent and are overwritten on the next Set.
type SQLStore struct {
	db          *sql.DB
	table       string
	autoMigrate bool
	clock       Clock
}

// NewSQLStore opens the database described by cfg, creating it and the cache table
// when configured to.
func NewSQLStore(ctx context.Context, cfg config.SQLConfig, clock Clock) (*SQLStore, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	table := cfg.Table
	if table == "" {
		table = "kspb_transients"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid cache table name %q", table)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(pingCtx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open sql connection: %w", err)
			}
			if err := db.PingContext(pingCtx); err != nil {
				return nil, fmt.Errorf("ping sql connection: %w", err)
			}
		} else {
			_ = db.Close()
			return nil, fmt.Errorf("ping sql connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}
	store := newSQLStore(db, table, cfg.AutoMigrate, clock)
	if cfg.AutoMigrate {
		if err := store.ensureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

func newSQLStore(db *sql.DB, table string, autoMigrate bool, clock Clock) *SQLStore {
	return &SQLStore{db: db, table: table, autoMigrate: autoMigrate, clock: clock}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = $1`, pq.QuoteIdentifier(s.table))
	var value []byte
	var expiresAt sql.NullTime
	err := s.retrySchema(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select cache entry: %w", err)
	}
	entry := Entry{Value: value}
	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}
	if entry.Expired(s.clock.now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (key, value, expires_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            expires_at = EXCLUDED.expires_at
    `, pq.QuoteIdentifier(s.table))
	var expiresAt sql.NullTime
	if exp := expiry(s.clock.now(), ttl); !exp.IsZero() {
		expiresAt = sql.NullTime{Time: exp, Valid: true}
	}
	err := s.retrySchema(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, key, value, expiresAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key LIKE $1 ESCAPE '\'`, pq.QuoteIdentifier(s.table))
	var affected int64
	err := s.retrySchema(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, escapeLike(prefix)+"%")
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	return int(affected), nil
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) retrySchema(ctx context.Context, op func() error) error {
	err := op()
	if err != nil && s.autoMigrate && isUndefinedTableErr(err) {
		if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
			return fmt.Errorf("ensure schema: %w", schemaErr)
		}
		return op()
	}
	return err
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	table := pq.QuoteIdentifier(s.table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		    key TEXT PRIMARY KEY,
		    value BYTEA NOT NULL,
		    expires_at TIMESTAMPTZ
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)`,
			pq.QuoteIdentifier("idx_"+s.table+"_expires_at"), table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.SQLConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDB, err := sql.Open(cfg.Driver, parsed.String())
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
