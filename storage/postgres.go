package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/CreativeUnicorns/prefer"
)

const (
	postgresCreateTableSQL = `
		CREATE TABLE IF NOT EXISTS preferences (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		);
	`

	// The WHERE clause makes an unchanged value affect zero rows.
	postgresUpsertSQL = `
		INSERT INTO preferences (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		WHERE preferences.value IS DISTINCT FROM EXCLUDED.value
	`

	postgresSelectSQL = `
		SELECT value FROM preferences
		WHERE namespace = $1 AND key = $2
	`

	postgresSelectAllSQL = `
		SELECT key, value FROM preferences
		WHERE namespace = $1
	`

	postgresDeleteSQL = `
		DELETE FROM preferences
		WHERE namespace = $1 AND key = $2
	`

	postgresNotifySQL = `SELECT pg_notify($1, $2)`
)

// sqlOpenFunc allows sql.Open to be replaced in tests.
var sqlOpenFunc = sql.Open

// pgListener is the subset of *pq.Listener used by PostgresStore.
type pgListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// newListenerFunc allows pq.NewListener to be replaced in tests.
var newListenerFunc = func(connString string, cb pq.EventCallbackType) pgListener {
	return pq.NewListener(connString, 10*time.Second, time.Minute, cb)
}

// PostgresStore implements prefer.Store on PostgreSQL. Every change is
// published with pg_notify on the store's channel. With WithListen the store
// reports changes from that channel, including those made by other processes;
// otherwise it reports its own writes directly.
type PostgresStore struct {
	notifier

	db        *sql.DB
	namespace string
	channel   string
	logger    prefer.Logger

	listener  pgListener
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewPostgresStore connects to PostgreSQL and runs migrations.
func NewPostgresStore(connString string, opts ...Option) (*PostgresStore, error) {
	o := newOptions(opts)

	db, err := sqlOpenFunc("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres: failed to ping database: %v", prefer.ErrStorageUnavailable, err)
	}

	s := &PostgresStore{
		db:        db,
		namespace: o.namespace,
		channel:   o.channel,
		logger:    o.logger,
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: failed to run migrations: %w", err)
	}

	if o.listen {
		l := newListenerFunc(connString, s.listenerEvent)
		if err := l.Listen(s.channel); err != nil {
			_ = l.Close()
			_ = db.Close()
			return nil, fmt.Errorf("postgres: failed to listen on %s: %w", s.channel, err)
		}
		s.listener = l
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.listen()
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(postgresCreateTableSQL)
	return err
}

// Get retrieves the value stored for key or prefer.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, postgresSelectSQL, s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", prefer.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value for key. Unchanged values are neither written nor reported.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, key, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, postgresUpsertSQL, s.namespace, key, value, time.Now().UTC())
	}, false)
}

// Contains reports whether a value is stored for key.
func (s *PostgresStore) Contains(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, prefer.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete removes key or returns prefer.ErrNotFound.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.write(ctx, key, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, postgresDeleteSQL, s.namespace, key)
	}, true)
}

// write runs exec and pg_notify in one transaction, so the notification is
// delivered only if the change commits.
func (s *PostgresStore) write(ctx context.Context, key string, exec func(*sql.Tx) (sql.Result, error), mustExist bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := exec(tx)
	if err != nil {
		return fmt.Errorf("postgres: failed to write %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get affected rows: %w", err)
	}
	if affected == 0 {
		if mustExist {
			return prefer.ErrNotFound
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, postgresNotifySQL, s.channel, key); err != nil {
		return fmt.Errorf("postgres: failed to notify %s: %w", s.channel, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit %s: %w", key, err)
	}

	if s.listener == nil {
		s.notify(key)
	}
	return nil
}

// GetAll returns every key and value in the namespace.
func (s *PostgresStore) GetAll(ctx context.Context) (map[string]string, error) {
	values, err := queryAll(ctx, s.db, postgresSelectAllSQL, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return values, nil
}

// Close stops listening and closes the database connection.
func (s *PostgresStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.listener != nil {
			close(s.stop)
			<-s.done
			err = s.listener.Close()
		}
		if cerr := s.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (s *PostgresStore) listen() {
	defer close(s.done)

	notifications := s.listener.NotificationChannel()
	for {
		select {
		case <-s.stop:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// pq sends nil after a reconnect; notifications may have been missed.
			if n == nil {
				s.logger.Warn("Postgres listener reconnected, changes may have been missed", "channel", s.channel)
				continue
			}
			s.notify(n.Extra)
		}
	}
}

func (s *PostgresStore) listenerEvent(event pq.ListenerEventType, err error) {
	if err != nil {
		s.logger.Error("Postgres listener error", "channel", s.channel, "event", int(event), "error", err)
	}
}
