package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockledger/internal/core/id"
)

// Registry provides access to tenant records.
type Registry interface {
	// GetByID returns ErrTenantNotFound for unknown ids.
	GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error)

	// ListActive returns all active tenants. Background jobs iterate over it.
	ListActive(ctx context.Context) ([]*Tenant, error)
}

// Resolve loads a tenant and requires it to be active.
func Resolve(ctx context.Context, r Registry, tenantID id.ID) (*Tenant, error) {
	t, err := r.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, ErrTenantNotActive
	}
	return t, nil
}

// PostgresRegistry implements Registry over the tenants table.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID id.ID) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, `
		SELECT id, slug, display_name, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, tenantID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return &t, nil
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := pgxscan.Select(ctx, r.pool, &tenants, `
		SELECT id, slug, display_name, status, created_at, updated_at
		FROM tenants
		WHERE status = $1
		ORDER BY slug
	`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return tenants, nil
}

// StaticRegistry is an in-process Registry for tests and single-tenant deployments.
type StaticRegistry struct {
	mu      sync.RWMutex
	tenants map[id.ID]*Tenant
}

func NewStaticRegistry(tenants ...*Tenant) *StaticRegistry {
	r := &StaticRegistry{tenants: make(map[id.ID]*Tenant, len(tenants))}
	for _, t := range tenants {
		r.tenants[t.ID] = t
	}
	return r
}

// Put adds or replaces a tenant.
func (r *StaticRegistry) Put(t *Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
}

func (r *StaticRegistry) GetByID(_ context.Context, tenantID id.ID) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

func (r *StaticRegistry) ListActive(_ context.Context) ([]*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create inserts t, assigning an id and timestamps when unset.
func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	if id.IsNil(t.ID) {
		t.ID = id.New()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, display_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Slug, t.DisplayName, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", t.Slug, err)
	}
	return nil
}

// ListAll returns tenants in every status.
func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := pgxscan.Select(ctx, r.pool, &tenants, `
		SELECT id, slug, display_name, status, created_at, updated_at
		FROM tenants
		ORDER BY slug
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// UpdateStatus suspends or reactivates a tenant.
func (r *PostgresRegistry) UpdateStatus(ctx context.Context, tenantID id.ID, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`, tenantID, status)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
