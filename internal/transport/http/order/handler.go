package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/Additional-Code/strata/internal/domain/order"
	"github.com/Additional-Code/strata/internal/dto"
	"github.com/Additional-Code/strata/internal/presentation/http/response"
	service "github.com/Additional-Code/strata/internal/service/order"
	"github.com/Additional-Code/strata/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/strata/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.DELETE("", h.deleteAll)
	g.GET("/summary", h.summary)
	g.POST("/bulk-status", h.bulkStatus)
	g.GET("/products/:productID", h.byProduct)
	g.GET("/:id", h.getByID)
	g.POST("/:id/submit", h.submit)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/items", h.addItem)
	g.PATCH("/:id/items/:itemID", h.updateItemQuantity)
	g.DELETE("/:id/items/:itemID", h.removeItem)
}

func parseID(c echo.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, errorbank.InvalidArgument("invalid order id", errorbank.WithCause(err))
	}
	return id, nil
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create",
		trace.WithAttributes(attribute.String("customer.id", payload.CustomerID)))
	defer span.End()

	items := make([]service.ItemInput, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, service.ItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order, err := h.svc.Create(ctx, payload.CustomerID, items)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	pageRaw, sizeRaw := c.QueryParam("page"), c.QueryParam("size")
	if pageRaw == "" && sizeRaw == "" {
		orders, err := h.svc.List(ctx)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(dto.FromOrders(orders)).Build()
	}

	page, err := strconv.Atoi(pageRaw)
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid page", errorbank.WithCause(err))).Build()
	}
	size, err := strconv.Atoi(sizeRaw)
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid size", errorbank.WithCause(err))).Build()
	}

	orders, err := h.svc.ListPaged(ctx, page, size)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(orders)).
		WithMeta("page", page).
		WithMeta("size", size).
		Build()
}

func (h *Handler) submit(c echo.Context) error {
	return h.transition(c, "orders.submit", h.svc.Submit)
}

func (h *Handler) confirm(c echo.Context) error {
	return h.transition(c, "orders.confirm", h.svc.Confirm)
}

func (h *Handler) transition(c echo.Context, spanName string,
	move func(ctx context.Context, id uuid.UUID) (*domain.Order, error)) error {
	b := response.New(c)

	id, err := parseID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), spanName,
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := move(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) addItem(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CreateItemRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.addItem",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.AddItem(ctx, id, service.ItemInput{
		ProductID:   payload.ProductID,
		ProductName: payload.ProductName,
		Quantity:    payload.Quantity,
		UnitPrice:   payload.UnitPrice,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) updateItemQuantity(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid item id", errorbank.WithCause(err))).Build()
	}

	var payload dto.QuantityRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateItemQuantity",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.UpdateItemQuantity(ctx, id, itemID, payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) removeItem(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	itemID, err := uuid.Parse(c.Param("itemID"))
	if err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid item id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.removeItem",
		trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.RemoveItem(ctx, id, itemID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.summary")
	defer span.End()

	summary, err := h.svc.Summary(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromSummary(summary)).Build()
}

func (h *Handler) bulkStatus(c echo.Context) error {
	b := response.New(c)

	var payload dto.BulkStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.bulkStatus",
		trace.WithAttributes(attribute.String("from", payload.From), attribute.String("to", payload.To)))
	defer span.End()

	updated, err := h.svc.BulkUpdateStatus(ctx, payload.From, payload.To)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BulkUpdateResponse{Updated: updated}).Build()
}

func (h *Handler) byProduct(c echo.Context) error {
	b := response.New(c)

	productID := c.Param("productID")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.byProduct",
		trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	orders, err := h.svc.FindByProduct(ctx, productID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(orders)).Build()
}

func (h *Handler) deleteAll(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.deleteAll")
	defer span.End()

	if err := h.svc.DeleteAll(ctx); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}
