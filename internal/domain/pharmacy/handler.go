package pharmacy

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/httpx"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	inv := api.Group("/chemist/inventory", auth.RequireRole(auth.RoleChemist))
	inv.POST("", h.CreateItem)
	inv.GET("", h.ListItems)
	inv.GET("/expiring", h.Expiring)
	inv.PUT("/:id", h.UpdateItem)
	inv.DELETE("/:id", h.DeleteItem)
	inv.POST("/:id/batches", h.AddBatch)

	chem := api.Group("/chemist", auth.RequireRole(auth.RoleChemist))
	chem.GET("/orders", h.ChemistOrders)
	chem.PATCH("/orders/:id/status", h.UpdateStatus)
	chem.GET("/dashboard", h.Dashboard)

	orders := api.Group("/orders", auth.RequireRole(auth.RolePatient))
	orders.POST("", h.PlaceOrder)
	orders.GET("/mine", h.MyOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.Cancel)
}

func caller(c echo.Context) Caller {
	ctx := c.Request().Context()
	return Caller{ID: auth.UserUUID(ctx), Role: auth.RoleFromContext(ctx)}
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateItem(c echo.Context) error {
	var in InventoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.CreateItem(c.Request().Context(), caller(c).ID, in)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, it)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	low, _ := strconv.ParseBool(c.QueryParam("low_stock"))
	items, total, err := h.svc.ListItems(c.Request().Context(), InventoryFilter{
		ChemistID: caller(c).ID,
		Search:    c.QueryParam("search"),
		LowStock:  low,
		Limit:     pg.Limit,
		Offset:    pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in InventoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.svc.UpdateItem(c.Request().Context(), caller(c).ID, id, in)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, it)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteItem(c.Request().Context(), caller(c).ID, id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddBatch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in BatchInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.AddBatch(c.Request().Context(), caller(c).ID, id, in)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, b)
}

func (h *Handler) Expiring(c echo.Context) error {
	days := 0
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a number")
		}
		days = n
	}
	items, err := h.svc.Expiring(c.Request().Context(), caller(c).ID, days)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, items)
}

func (h *Handler) PlaceOrder(c echo.Context) error {
	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o, err := h.svc.PlaceOrder(c.Request().Context(), caller(c).ID, req)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusCreated, o)
}

func (h *Handler) MyOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	id := caller(c).ID
	items, total, err := h.svc.ListOrders(c.Request().Context(), OrderFilter{
		PatientID: &id,
		Status:    c.QueryParam("status"),
		Limit:     pg.Limit,
		Offset:    pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) ChemistOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	id := caller(c).ID
	items, total, err := h.svc.ListOrders(c.Request().Context(), OrderFilter{
		ChemistID: &id,
		Status:    c.QueryParam("status"),
		Limit:     pg.Limit,
		Offset:    pg.Offset(),
	})
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.Paged(c, items, total, pg)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StatusUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, req.Status)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

// Cancel lets the patient withdraw an order that has not been packed.
func (h *Handler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), id, StatusCancelled)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, o)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), caller(c).ID)
	if err != nil {
		return httpx.Error(err)
	}
	return httpx.OK(c, http.StatusOK, d)
}
