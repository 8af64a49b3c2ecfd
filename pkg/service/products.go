package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/flags"
	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/router"
)

const defaultPremiumLimit = 5

type ProductService struct {
	repo   *router.Repository[models.Product, string]
	flags  *flags.Service
	logger logger.Logger
}

func NewProductService(repo *router.Repository[models.Product, string], f *flags.Service, l logger.Logger) *ProductService {
	return &ProductService{repo: repo, flags: f, logger: l}
}

func validateProduct(p models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", constants.ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", constants.ErrInvalidInput)
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("%w: stock quantity must not be negative", constants.ErrInvalidInput)
	}
	return nil
}

// Create stores a new product. Any id on p is replaced.
func (s *ProductService) Create(ctx context.Context, callerID string, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	p.ID = models.NewID()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	return s.repo.Save(ctx, callerID, p)
}

func (s *ProductService) Get(ctx context.Context, callerID, id string) (models.Product, error) {
	if s.flags.Enabled(ctx, callerID, constants.FlagEnhancedProductDetails) {
		s.logger.Info("enhanced product details enabled", "caller", callerID, "product", id)
	}
	return s.find(ctx, callerID, id)
}

func (s *ProductService) find(ctx context.Context, callerID, id string) (models.Product, error) {
	p, found, err := s.repo.FindByID(ctx, callerID, id)
	if err != nil {
		return models.Product{}, err
	}
	if !found {
		return models.Product{}, fmt.Errorf("product %s: %w", id, constants.ErrNotFound)
	}
	return p, nil
}

// List returns all products, optionally narrowed to one category. Callers
// with new-flow on only see products in stock.
func (s *ProductService) List(ctx context.Context, callerID, category string) ([]models.Product, error) {
	all, err := s.repo.FindAll(ctx, callerID)
	if err != nil {
		return nil, err
	}
	inStockOnly := s.flags.Enabled(ctx, callerID, constants.FlagNewFlow)
	if inStockOnly {
		s.logger.Info("new flow enabled", "caller", callerID)
	}
	if category == "" && !inStockOnly {
		return all, nil
	}
	out := make([]models.Product, 0, len(all))
	for _, p := range all {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if inStockOnly && p.StockQuantity <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Premium returns the oldest in-stock products, at most premium-product-limit
// of them. It fails with ErrFeatureDisabled unless premium-features is on for
// callerID.
func (s *ProductService) Premium(ctx context.Context, callerID string) ([]models.Product, error) {
	if !s.flags.Enabled(ctx, callerID, constants.FlagPremiumFeatures) {
		return nil, fmt.Errorf("premium products: %w", constants.ErrFeatureDisabled)
	}
	all, err := s.repo.FindAll(ctx, callerID)
	if err != nil {
		return nil, err
	}
	limit := int(s.flags.GetNumberValue(ctx, callerID, constants.FlagPremiumProductLimit, defaultPremiumLimit))
	if limit < 0 {
		limit = 0
	}

	var out []models.Product
	for _, p := range all {
		if p.StockQuantity > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update replaces the editable fields of an existing product.
func (s *ProductService) Update(ctx context.Context, callerID, id string, in models.Product) (models.Product, error) {
	if err := validateProduct(in); err != nil {
		return models.Product{}, err
	}
	p, err := s.find(ctx, callerID, id)
	if err != nil {
		return models.Product{}, err
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.StockQuantity = in.StockQuantity
	p.ImageURL = in.ImageURL
	p.UpdatedAt = now()
	return s.repo.Save(ctx, callerID, p)
}

func (s *ProductService) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.find(ctx, callerID, id); err != nil {
		return err
	}
	return s.repo.DeleteByID(ctx, callerID, id)
}

// AdjustStock adds delta to the stock of a product. The result must not be
// negative.
func (s *ProductService) AdjustStock(ctx context.Context, callerID, id string, delta int) (models.Product, error) {
	p, err := s.find(ctx, callerID, id)
	if err != nil {
		return models.Product{}, err
	}
	if p.StockQuantity+delta < 0 {
		return models.Product{}, fmt.Errorf("product %s: %w", id, constants.ErrInsufficientStock)
	}
	p.StockQuantity += delta
	p.UpdatedAt = now()
	return s.repo.Save(ctx, callerID, p)
}
