package ledger

//nolint:golint,revive
import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/wormhole-demo/corebridge/internal/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

const entriesTable = "ledger_entries"

// PostgresStore keeps the ledger in a single postgres table. Each Apply runs
// in one transaction, so preconditions are checked against the transaction's
// own earlier writes.
type PostgresStore struct {
	db  *sqlx.DB
	url string
}

// OpenPostgresStore connects with the pgx driver. url is a postgres:// connection URL.
func OpenPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	conn, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	conn.SetMaxIdleConns(3)
	conn.SetMaxOpenConns(10)
	return &PostgresStore{db: conn, url: url}, nil
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("can't load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.url))
	if err != nil {
		return fmt.Errorf("can't connect to postgres database: %w", err)
	}
	defer m.Close()

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply postgres database migrations: %w", err)
	}
	return nil
}

func migrateURL(url string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, prefix) {
			return "pgx://" + strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func (s *PostgresStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	q, args, err := sq.Select("value").
		From(entriesTable).
		Where(sq.Eq{"key": key}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}

	var value []byte
	err = s.db.GetContext(ctx, &value, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get ledger entry: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Apply(ctx context.Context, ops ...Op) error {
	if err := validate(ops); err != nil {
		return err
	}
	defer metrics.ObserveApply("postgres")()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, op := range ops {
		if err = applyOp(ctx, tx, op); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return translate(Op{Kind: OpPut}, fmt.Errorf("can't commit transaction: %w", err))
	}
	return nil
}

func applyOp(ctx context.Context, tx *sqlx.Tx, op Op) error {
	var builder interface {
		ToSql() (string, []interface{}, error)
	}

	switch op.Kind {
	case OpCreate:
		builder = sq.Insert(entriesTable).
			Columns("key", "value").
			Values(op.Key, nonNil(op.Value)).
			PlaceholderFormat(sq.Dollar)
	case OpSwap:
		builder = sq.Update(entriesTable).
			Set("value", nonNil(op.Value)).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"key": op.Key, "value": nonNil(op.Old)}).
			PlaceholderFormat(sq.Dollar)
	case OpPut:
		builder = sq.Insert(entriesTable).
			Columns("key", "value").
			Values(op.Key, nonNil(op.Value)).
			Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()").
			PlaceholderFormat(sq.Dollar)
	case OpDelete:
		builder = sq.Delete(entriesTable).
			Where(sq.Eq{"key": op.Key}).
			PlaceholderFormat(sq.Dollar)
	}

	q, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return translate(op, err)
	}

	if op.Kind == OpSwap {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("can't read affected rows: %w", err)
		}
		if n == 0 {
			return &OpError{Kind: op.Kind, Key: op.Key, Err: ErrConflict}
		}
	}
	return nil
}

func translate(op Op, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &OpError{Kind: op.Kind, Key: op.Key, Err: ErrKeyExists}
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return &OpError{Kind: op.Kind, Key: op.Key, Err: ErrConflict}
	default:
		return err
	}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
