package plans

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ledgersync/ledgersync/app/models"
	"github.com/ledgersync/ledgersync/internal/pkg/cache"
	"gorm.io/gorm"
)

const (
	priceCacheKeyPrefix = "plans:price:"
	priceCacheTTL       = 5 * time.Minute
)

// Resolver resolves a provider price id to an internal plan mapping.
type Resolver interface {
	Resolve(ctx context.Context, priceID string) (*models.PlanMapping, error)
}

// Repository provides DB operations used by the catalog.
type Repository interface {
	FindActiveMapping(priceID string) (*models.PlanMapping, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a plan mapping repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActiveMapping(priceID string) (*models.PlanMapping, error) {
	var m models.PlanMapping
	err := r.db.
		Where("price_id = ? AND is_active = ?", priceID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Catalog resolves price ids against the plan_mappings table with a short
// Redis cache in front, since every webhook with a price touches it.
type Catalog struct {
	repo     Repository
	useCache bool
}

// NewCatalog creates a catalog from an injected repository.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo, useCache: true}
}

// NewCatalogFromDB creates a catalog from a GORM DB handle.
func NewCatalogFromDB(db *gorm.DB) *Catalog {
	return NewCatalog(NewRepository(db))
}

// WithoutCache disables the Redis layer; used by tests and the seed command.
func (c *Catalog) WithoutCache() *Catalog {
	c.useCache = false
	return c
}

// Resolve returns the active mapping for a price id, or *UnknownPriceError
// when no active mapping exists.
func (c *Catalog) Resolve(ctx context.Context, priceID string) (*models.PlanMapping, error) {
	_ = ctx
	id := strings.TrimSpace(priceID)
	if id == "" {
		return nil, &UnknownPriceError{PriceID: priceID}
	}

	if c.useCache {
		if raw, err := cache.Get(priceCacheKeyPrefix + id); err == nil {
			var m models.PlanMapping
			if err := json.Unmarshal([]byte(raw), &m); err == nil {
				return &m, nil
			}
		}
	}

	m, err := c.repo.FindActiveMapping(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnknownPriceError{PriceID: id}
		}
		return nil, err
	}

	if c.useCache {
		if raw, err := json.Marshal(m); err == nil {
			if err := cache.Set(priceCacheKeyPrefix+id, string(raw), priceCacheTTL); err != nil {
				log.Warnf("[Plans] Failed to cache mapping for %s: %v", id, err)
			}
		}
	}
	return m, nil
}
