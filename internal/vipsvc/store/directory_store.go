package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/registraction/vip-services/internal/vipsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool table names are data coming from the directory table, so they are
// interpolated into SQL. Anything that is not a plain lowercase
// identifier is rejected before it gets near a query.
var poolTablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func ValidatePoolTable(name string) error {
	if !poolTablePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadPoolTable, name)
	}
	return nil
}

type DirectoryStore struct {
	db *pgxpool.Pool
}

func NewDirectoryStore(db *pgxpool.Pool) *DirectoryStore {
	return &DirectoryStore{db: db}
}

// ResolveToken looks up an active store by its registration token.
func (s *DirectoryStore) ResolveToken(ctx context.Context, token string) (*models.Store, error) {
	query := `
        SELECT id, token, name, pool_table, active, created_at
        FROM stores
        WHERE token = $1 AND active
        LIMIT 1
    `

	st := &models.Store{}
	err := s.db.QueryRow(ctx, query, token).Scan(
		&st.ID,
		&st.Token,
		&st.Name,
		&st.PoolTable,
		&st.Active,
		&st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("resolve store token: %w", err)
	}

	if err := ValidatePoolTable(st.PoolTable); err != nil {
		return nil, err
	}

	return st, nil
}

// ListStores returns every directory row, active or not.
func (s *DirectoryStore) ListStores(ctx context.Context) ([]models.Store, error) {
	query := `
        SELECT id, token, name, pool_table, active, created_at
        FROM stores
        ORDER BY id
    `

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var stores []models.Store
	for rows.Next() {
		var st models.Store
		err := rows.Scan(&st.ID, &st.Token, &st.Name, &st.PoolTable, &st.Active, &st.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	return stores, nil
}
