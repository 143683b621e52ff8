package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires the routes. Admin routes live under /api/admin; the
// gateway in front of this service is expected to gate them.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("storefront"))

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		api.POST("/checkout", h.Checkout)
		api.POST("/checkout/precheck", h.PrecheckStock)

		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)

		api.GET("/cart", h.GetCart)
		api.POST("/cart/items", h.AddCartItem)
		api.PATCH("/cart/items", h.AdjustCartItem)
		api.DELETE("/cart/items/:variantID", h.RemoveCartItem)

		api.PATCH("/admin/orders/:id/status", h.UpdateOrderStatus)
	}

	return r
}
