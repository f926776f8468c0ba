package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/autorag/internal/domain"
)

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

var errPoolClosed = errors.New("inventory: pool closed")

// PoolConfig holds store credentials.
type PoolConfig struct {
	URL      string // DATABASE_URL
	Password string // DATABASE_PASSWORD, overrides the URL password when set
	MaxConns int32
}

// LazyPool builds the connection pool on first use, exactly once.
// Later callers get the same pool or the same construction error.
type LazyPool struct {
	cfg  PoolConfig
	once sync.Once
	pool *pgxpool.Pool
	err  error
}

// NewLazyPool creates a factory; nothing is dialed until Get.
func NewLazyPool(cfg PoolConfig) *LazyPool {
	return &LazyPool{cfg: cfg}
}

// Get returns the shared pool. A missing URL yields a configuration error naming DATABASE_URL.
func (p *LazyPool) Get(ctx context.Context) (querier, error) {
	p.once.Do(func() {
		p.pool, p.err = p.build(ctx)
	})
	if p.err != nil {
		return nil, p.err
	}
	return p.pool, nil
}

func (p *LazyPool) build(ctx context.Context) (*pgxpool.Pool, error) {
	if p.cfg.URL == "" {
		return nil, domain.NewConfigurationError("DATABASE_URL")
	}
	pcfg, err := pgxpool.ParseConfig(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if p.cfg.Password != "" {
		pcfg.ConnConfig.Password = p.cfg.Password
	}
	if p.cfg.MaxConns > 0 {
		pcfg.MaxConns = p.cfg.MaxConns
	}
	// pgxpool connects lazily, so ctx only bounds config validation here.
	pool, err := pgxpool.NewWithConfig(context.WithoutCancel(ctx), pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// Close releases the pool if it was built. Close waits for a Get that is building
// the pool; a Get after Close on an unbuilt pool returns an error.
func (p *LazyPool) Close() {
	p.once.Do(func() {
		p.err = errPoolClosed
	})
	if p.pool != nil {
		p.pool.Close()
	}
}
