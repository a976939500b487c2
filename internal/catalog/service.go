package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
)

// MinClientQueryLength is the shortest client search query that hits storage.
const MinClientQueryLength = 3

const clientSearchLimit = 20

// Service serves catalog lookups through the cache, coalescing concurrent loads.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService creates a catalog service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Products returns the product list with current sale prices.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.cached(ctx, &products, func(ctx context.Context) (any, error) {
		return s.repo.ListProducts(ctx)
	}, "products")
	if err != nil {
		return nil, err
	}
	return nonNil(products), nil
}

// Municipalities returns the municipality list.
func (s *Service) Municipalities(ctx context.Context) ([]Municipality, error) {
	var munis []Municipality
	err := s.cached(ctx, &munis, func(ctx context.Context) (any, error) {
		return s.repo.ListMunicipalities(ctx)
	}, "municipalities")
	if err != nil {
		return nil, err
	}
	return nonNil(munis), nil
}

// SearchClients looks clients up by name or phone. Queries shorter than
// MinClientQueryLength return an empty list without touching storage.
func (s *Service) SearchClients(ctx context.Context, query string) ([]Client, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinClientQueryLength {
		return []Client{}, nil
	}
	var clients []Client
	err := s.cached(ctx, &clients, func(ctx context.Context) (any, error) {
		return s.repo.SearchClients(ctx, query, clientSearchLimit)
	}, "clients", strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	return nonNil(clients), nil
}

// Invalidate drops every cached catalog entry.
func (s *Service) Invalidate(ctx context.Context) error {
	ver, err := s.cache.Bump(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("catalog cache bumped", slog.Int64("version", ver))
	return nil
}

func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		key = strings.Join(parts, ":")
	}
	ch := s.group.DoChan(key, func() (any, error) {
		// Each waiter decodes its own copy of the shared payload.
		var raw json.RawMessage
		err := s.cache.FetchJSON(ctx, key, &raw, loader)
		return raw, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
