// Package service holds the shop's business operations. Every read and write
// goes through a router.Repository, so the caller id passed in decides which
// store serves reads and whose write result comes back.
package service

import (
	"time"

	"github.com/surrealdb/dualstore/pkg/flags"
	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/models"
	"github.com/surrealdb/dualstore/pkg/router"
)

// Repositories is one dual-store repository per entity type.
type Repositories struct {
	Users      *router.Repository[models.User, string]
	Products   *router.Repository[models.Product, string]
	CartItems  *router.Repository[models.CartItem, string]
	Orders     *router.Repository[models.Order, string]
	OrderItems *router.Repository[models.OrderItem, string]
}

type Services struct {
	Users    *UserService
	Products *ProductService
	Cart     *CartService
	Orders   *OrderService
}

type options struct {
	flags  *flags.Service
	logger logger.Logger
}

type Option func(*options)

// WithFlags sets the flag service consulted by product operations. Without
// it every flag takes its fallback value.
func WithFlags(f *flags.Service) Option {
	return func(o *options) { o.flags = f }
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(repos Repositories, opts ...Option) *Services {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.flags == nil {
		o.flags = flags.NewService(nil)
	}

	cart := NewCartService(repos.CartItems, repos.Products)
	return &Services{
		Users:    NewUserService(repos.Users),
		Products: NewProductService(repos.Products, o.flags, o.logger),
		Cart:     cart,
		Orders:   NewOrderService(repos.Orders, repos.OrderItems, repos.Products, cart),
	}
}

// now is truncated to microseconds, the finest precision both stores keep,
// so a timestamp written to each store reads back equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
