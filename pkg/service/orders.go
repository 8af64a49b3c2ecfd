package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/router"
)

type OrderService struct {
	orders   *router.Repository[models.Order, string]
	items    *router.Repository[models.OrderItem, string]
	products *router.Repository[models.Product, string]
	cart     *CartService
}

func NewOrderService(
	orders *router.Repository[models.Order, string],
	items *router.Repository[models.OrderItem, string],
	products *router.Repository[models.Product, string],
	cart *CartService,
) *OrderService {
	return &OrderService{orders: orders, items: items, products: products, cart: cart}
}

// OrderDetails is an order with its lines.
type OrderDetails struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

// Checkout turns the user's cart into an order. Stock is checked for every
// line before anything is written; lines are priced at the current product
// price. The cart is emptied afterwards.
//
// The stores share no transaction, so a failure after the order is saved
// leaves the order in place and returns the error.
func (s *OrderService) Checkout(ctx context.Context, userID, shippingAddress string) (OrderDetails, error) {
	if strings.TrimSpace(shippingAddress) == "" {
		return OrderDetails{}, fmt.Errorf("%w: shipping address is required", constants.ErrInvalidInput)
	}
	cart, err := s.cart.Items(ctx, userID)
	if err != nil {
		return OrderDetails{}, err
	}
	if len(cart) == 0 {
		return OrderDetails{}, constants.ErrEmptyCart
	}

	products := make(map[string]models.Product, len(cart))
	var total float64
	for _, line := range cart {
		p, found, err := s.products.FindByID(ctx, userID, line.ProductID)
		if err != nil {
			return OrderDetails{}, err
		}
		if !found {
			return OrderDetails{}, fmt.Errorf("product %s: %w", line.ProductID, constants.ErrNotFound)
		}
		if p.StockQuantity < line.Quantity {
			return OrderDetails{}, fmt.Errorf("product %s: %w", p.Name, constants.ErrInsufficientStock)
		}
		products[p.ID] = p
		total += p.Price * float64(line.Quantity)
	}

	ts := now()
	order, err := s.orders.Save(ctx, userID, models.Order{
		ID:              models.NewID(),
		UserID:          userID,
		TotalAmount:     math.Round(total*100) / 100,
		Status:          models.OrderPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
	if err != nil {
		return OrderDetails{}, err
	}

	details := OrderDetails{Order: order, Items: make([]models.OrderItem, 0, len(cart))}
	for _, line := range cart {
		p := products[line.ProductID]
		item, err := s.items.Save(ctx, userID, models.OrderItem{
			ID:        models.NewID(),
			OrderID:   order.ID,
			ProductID: p.ID,
			Quantity:  line.Quantity,
			Price:     p.Price,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
		if err != nil {
			return details, fmt.Errorf("failed to save order line for %s: %w", p.ID, err)
		}
		details.Items = append(details.Items, item)

		p.StockQuantity -= line.Quantity
		p.UpdatedAt = ts
		if _, err := s.products.Save(ctx, userID, p); err != nil {
			return details, fmt.Errorf("failed to update stock for %s: %w", p.ID, err)
		}
		products[p.ID] = p
	}

	if err := s.cart.Clear(ctx, userID); err != nil {
		return details, err
	}
	return details, nil
}

func (s *OrderService) Get(ctx context.Context, userID, orderID string) (OrderDetails, error) {
	order, found, err := s.orders.FindByID(ctx, userID, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	if !found || order.UserID != userID {
		return OrderDetails{}, fmt.Errorf("order %s: %w", orderID, constants.ErrNotFound)
	}
	items, err := s.lines(ctx, userID, map[string]bool{orderID: true})
	if err != nil {
		return OrderDetails{}, err
	}
	return OrderDetails{Order: order, Items: items[orderID]}, nil
}

// List returns the user's orders, newest first.
func (s *OrderService) List(ctx context.Context, userID string) ([]OrderDetails, error) {
	all, err := s.orders.FindAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	var mine []models.Order
	for _, o := range all {
		if o.UserID == userID {
			mine = append(mine, o)
			ids[o.ID] = true
		}
	}
	sort.SliceStable(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	items, err := s.lines(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]OrderDetails, 0, len(mine))
	for _, o := range mine {
		out = append(out, OrderDetails{Order: o, Items: items[o.ID]})
	}
	return out, nil
}

func (s *OrderService) lines(ctx context.Context, callerID string, orderIDs map[string]bool) (map[string][]models.OrderItem, error) {
	all, err := s.items.FindAll(ctx, callerID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.OrderItem, len(orderIDs))
	for _, item := range all {
		if orderIDs[item.OrderID] {
			out[item.OrderID] = append(out[item.OrderID], item)
		}
	}
	return out, nil
}

// UpdateStatus moves an order to a new status. Cancelled and delivered
// orders are final.
func (s *OrderService) UpdateStatus(ctx context.Context, userID, orderID string, status models.OrderStatus) (models.Order, error) {
	order, found, err := s.orders.FindByID(ctx, userID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !found || order.UserID != userID {
		return models.Order{}, fmt.Errorf("order %s: %w", orderID, constants.ErrNotFound)
	}
	if order.Status == models.OrderCancelled || order.Status == models.OrderDelivered {
		return models.Order{}, fmt.Errorf("%w: order %s is %s", constants.ErrInvalidInput, orderID, order.Status)
	}
	order.Status = status
	order.UpdatedAt = now()
	return s.orders.Save(ctx, userID, order)
}
