package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row looked up by identifier does not exist.
var ErrNotFound = errors.New("not found")

// Store owns the connection pool. Drivers: "postgres" (lib/pq) and
// "sqlite" (modernc).
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects and applies pending migrations.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}
	if driver == "sqlite" {
		// one connection: serialises writers and keeps ":memory:" shared
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Driver() string { return s.driver }

// Repos returns repositories bound to the pool (no transaction).
func (s *Store) Repos() *Repos { return newRepos(s.db, s.driver) }

// InTx runs fn inside one transaction; fn's error rolls everything back.
// Repositories handed to fn must be the only DB access inside it.
func (s *Store) InTx(ctx context.Context, fn func(r *Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(newRepos(tx, s.driver)); err != nil {
		return err
	}
	return tx.Commit()
}

// Repos bundles every repository over one queryer.
type Repos struct {
	Requests       RequestRepository
	Communications CommunicationRepository
	Files          FileRepository
	Tasks          TaskRepository
	Users          UserRepository
	Agencies       AgencyRepository
	Jurisdictions  JurisdictionRepository
	Appeals        AppealRepository
	Notes          NoteRepository
	Crowdfunds     CrowdfundRepository
}

func newRepos(q sqlx.ExtContext, driver string) *Repos {
	b := base{q: q, lock: driver == "postgres"}
	return &Repos{
		Requests:       &requestRepository{b},
		Communications: &communicationRepository{b},
		Files:          &fileRepository{b},
		Tasks:          &taskRepository{b},
		Users:          &userRepository{b},
		Agencies:       &agencyRepository{b},
		Jurisdictions:  &jurisdictionRepository{b},
		Appeals:        &appealRepository{b},
		Notes:          &noteRepository{b},
		Crowdfunds:     &crowdfundRepository{b},
	}
}

// base carries the queryer shared by repositories. lock enables row locks
// (SELECT ... FOR UPDATE) where the driver supports them.
type base struct {
	q    sqlx.ExtContext
	lock bool
}

func (b base) forUpdate() string {
	if b.lock {
		return " FOR UPDATE"
	}
	return ""
}

func (b base) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, b.q, dest, b.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (b base) sel(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, b.q, dest, b.q.Rebind(query), args...)
}

func (b base) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.q.ExecContext(ctx, b.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne is exec that reports ErrNotFound when no row matched.
func (b base) execOne(ctx context.Context, query string, args ...any) error {
	n, err := b.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b base) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := b.q.QueryRowxContext(ctx, b.q.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}
