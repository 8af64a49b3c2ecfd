package service

import (
	"context"
	"fmt"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/router"
)

// CartService manages cart items. The user id doubles as the routing caller.
type CartService struct {
	items    *router.Repository[models.CartItem, string]
	products *router.Repository[models.Product, string]
}

func NewCartService(items *router.Repository[models.CartItem, string], products *router.Repository[models.Product, string]) *CartService {
	return &CartService{items: items, products: products}
}

func (s *CartService) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	all, err := s.items.FindAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.CartItem, 0)
	for _, item := range all {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

// AddItem puts quantity units of a product in the cart. A product already in
// the cart gets its quantity increased instead of a second line.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (models.CartItem, error) {
	if quantity <= 0 {
		return models.CartItem{}, fmt.Errorf("%w: quantity must be positive", constants.ErrInvalidInput)
	}
	found, err := s.products.ExistsByID(ctx, userID, productID)
	if err != nil {
		return models.CartItem{}, err
	}
	if !found {
		return models.CartItem{}, fmt.Errorf("product %s: %w", productID, constants.ErrNotFound)
	}

	items, err := s.Items(ctx, userID)
	if err != nil {
		return models.CartItem{}, err
	}
	ts := now()
	for _, item := range items {
		if item.ProductID == productID {
			item.Quantity += quantity
			item.UpdatedAt = ts
			return s.items.Save(ctx, userID, item)
		}
	}

	return s.items.Save(ctx, userID, models.CartItem{
		ID:        models.NewID(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
}

func (s *CartService) item(ctx context.Context, userID, itemID string) (models.CartItem, error) {
	item, found, err := s.items.FindByID(ctx, userID, itemID)
	if err != nil {
		return models.CartItem{}, err
	}
	if !found || item.UserID != userID {
		return models.CartItem{}, fmt.Errorf("cart item %s: %w", itemID, constants.ErrNotFound)
	}
	return item, nil
}

// UpdateQuantity sets the quantity of a cart line. Zero or less removes it,
// in which case the returned item is the removed one.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (models.CartItem, error) {
	item, err := s.item(ctx, userID, itemID)
	if err != nil {
		return models.CartItem{}, err
	}
	if quantity <= 0 {
		return item, s.items.DeleteByID(ctx, userID, itemID)
	}
	item.Quantity = quantity
	item.UpdatedAt = now()
	return s.items.Save(ctx, userID, item)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.item(ctx, userID, itemID); err != nil {
		return err
	}
	return s.items.DeleteByID(ctx, userID, itemID)
}

// Clear removes every line of the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.items.DeleteByID(ctx, userID, item.ID); err != nil {
			return fmt.Errorf("failed to clear cart item %s: %w", item.ID, err)
		}
	}
	return nil
}
