package dualstore

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surrealdb/dualstore/pkg/models"
)

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *App) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	user, err := a.services.Users.Register(r.Context(), req.Email, req.Name)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (a *App) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userId"]
	user, err := a.services.Users.Get(r.Context(), id, id)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type productRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stock_quantity"`
	ImageURL      string  `json:"image_url"`
}

func (p productRequest) model() models.Product {
	return models.Product{
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
	}
}

func (a *App) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.services.Products.List(r.Context(), callerID(r), r.URL.Query().Get("category"))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (a *App) handlePremiumProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.services.Products.Premium(r.Context(), callerID(r))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"products":  products,
		"isPremium": true,
	})
}

func (a *App) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	product, err := a.services.Products.Create(r.Context(), callerID(r), req.model())
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (a *App) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.services.Products.Get(r.Context(), callerID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (a *App) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	product, err := a.services.Products.Update(r.Context(), callerID(r), mux.Vars(r)["id"], req.model())
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (a *App) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Products.Delete(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (a *App) handleGetCart(w http.ResponseWriter, r *http.Request) {
	items, err := a.services.Cart.Items(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *App) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	item, err := a.services.Cart.AddItem(r.Context(), mux.Vars(r)["userId"], req.ProductID, req.Quantity)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (a *App) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Cart.Clear(r.Context(), mux.Vars(r)["userId"]); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	vars := mux.Vars(r)
	item, err := a.services.Cart.UpdateQuantity(r.Context(), vars["userId"], vars["itemId"], req.Quantity)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	if req.Quantity <= 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (a *App) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.services.Cart.RemoveItem(r.Context(), vars["userId"], vars["itemId"]); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *App) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.services.Orders.List(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (a *App) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	order, err := a.services.Orders.Checkout(r.Context(), mux.Vars(r)["userId"], req.ShippingAddress)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (a *App) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	order, err := a.services.Orders.Get(r.Context(), vars["userId"], vars["orderId"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (a *App) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown order status")
		return
	}
	vars := mux.Vars(r)
	order, err := a.services.Orders.UpdateStatus(r.Context(), vars["userId"], vars["orderId"], status)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
