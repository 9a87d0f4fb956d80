package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vitrine/internal/cart"
	"vitrine/internal/domain"
	"vitrine/internal/middleware"
)

// AddItemRequest represents the add-to-cart request payload
type AddItemRequest struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
}

// UpdateQuantityRequest represents the quantity change payload
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CheckoutRequest represents the checkout request payload
type CheckoutRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

// CartResponse is the cart snapshot returned by every cart mutation.
type CartResponse struct {
	Items []domain.CartItem `json:"items"`
	Count int               `json:"count"`
}

// CartHandler handles HTTP requests for the cart and purchase history.
type CartHandler struct {
	carts   *cart.Store
	catalog Catalog
	logger  *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *cart.Store, catalog Catalog, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers the cart routes, all behind auth.
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productID}", h.UpdateQuantity)
			r.Delete("/items/{productID}", h.RemoveItem)
			r.Post("/checkout", h.Checkout)
		})
		r.Get("/api/purchases", h.GetPurchases)
	})
}

// GetCart returns the current cart contents.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.snapshot())
}

// AddItem resolves the product in the catalog and puts it in the cart.
// Adding a product that is already there changes nothing.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	product, err := h.catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Debug("Product lookup failed", zap.Int("product_id", req.ProductID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.carts.Add(*product); err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, h.snapshot())
}

// UpdateQuantity sets the quantity of one cart line. Quantities below one
// are rejected here before they reach the cart.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req UpdateQuantityRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	h.carts.UpdateQuantity(productID, req.Quantity)
	middleware.RespondWithJSON(w, http.StatusOK, h.snapshot())
}

// RemoveItem drops one product from the cart.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := urlID(r, "productID")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	h.carts.Remove(productID)
	middleware.RespondWithJSON(w, http.StatusOK, h.snapshot())
}

// ClearCart empties the cart and removes its storage entry.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.carts.Clear()
	middleware.RespondWithJSON(w, http.StatusOK, h.snapshot())
}

// Checkout turns the cart into a purchase record.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeRequest(h.logger, w, r, &req) {
		return
	}

	purchase, err := h.carts.Checkout(req.PaymentMethod)
	if err != nil {
		switch err {
		case cart.ErrNoIdentity:
			middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		case cart.ErrEmptyCart:
			middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record purchase")
		}
		return
	}

	h.logger.Info("Checkout completed",
		zap.String("purchase_id", purchase.ID),
		zap.Float64("total", purchase.Total),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, purchase)
}

// GetPurchases lists the purchase history of the active user.
func (h *CartHandler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.carts.Purchases()
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "no active session")
		return
	}
	if purchases == nil {
		purchases = []domain.Purchase{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, purchases)
}

func (h *CartHandler) snapshot() CartResponse {
	items := h.carts.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{Items: items, Count: h.carts.Count()}
}
