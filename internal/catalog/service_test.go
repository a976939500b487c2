package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu            sync.Mutex
	products      []Product
	clients       []Client
	munis         []Municipality
	productCalls  int
	clientQueries []string
	err           error
}

func (m *mockRepository) ListProducts(ctx context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.products, nil
}

func (m *mockRepository) SearchClients(ctx context.Context, query string, limit int) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientQueries = append(m.clientQueries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.clients, nil
}

func (m *mockRepository) ListMunicipalities(ctx context.Context) ([]Municipality, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.munis, nil
}

func newTestService(t *testing.T, repo *mockRepository) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), nil), mr
}

// ============================================================================
// TESTS
// ============================================================================

func TestProductsAreCached(t *testing.T) {
	repo := &mockRepository{products: []Product{{ID: 1, Description: "Agua 2L", SalePrice: decimal.RequireFromString("100.50")}}}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Products(ctx)
	require.NoError(t, err)
	second, err := svc.Products(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.productCalls)
	require.Len(t, second, 1)
	assert.True(t, first[0].SalePrice.Equal(second[0].SalePrice))
	assert.Equal(t, "Agua 2L", second[0].Description)
}

func TestInvalidateReloadsProducts(t *testing.T) {
	repo := &mockRepository{products: []Product{{ID: 1, Description: "Soda", SalePrice: decimal.NewFromInt(10)}}}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Products(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Products(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.productCalls)
}

func TestSearchClientsMinimumLength(t *testing.T) {
	repo := &mockRepository{clients: []Client{{ID: 5, Name: "Almacen Lopez"}}}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	clients, err := svc.SearchClients(ctx, " al ")
	require.NoError(t, err)
	assert.Empty(t, clients)
	assert.NotNil(t, clients)
	assert.Empty(t, repo.clientQueries)

	clients, err = svc.SearchClients(ctx, "alm")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, []string{"alm"}, repo.clientQueries)
}

func TestRepositoryErrorPropagates(t *testing.T) {
	repo := &mockRepository{err: errors.New("db down")}
	svc, mr := newTestService(t, repo)

	_, err := svc.Municipalities(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Len(t, mr.Keys(), 1, "only the version key is written")
}

func TestServiceWithoutRedis(t *testing.T) {
	repo := &mockRepository{munis: []Municipality{{ID: 1, Name: "Rio Ceballos"}}}
	svc := NewService(repo, nil, nil)

	munis, err := svc.Municipalities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Municipality{{ID: 1, Name: "Rio Ceballos"}}, munis)
}
