package handler

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/servicelogs/internal/model"
	"github.com/akave-ai/servicelogs/internal/response"
	"github.com/akave-ai/servicelogs/internal/service"
)

// LogHandler serves /logs. It only translates between HTTP and the
// LogService; every response uses the {error, data} envelope.
type LogHandler struct {
	Service *service.LogService
}

type createLogRequest struct {
	Data *model.LogData `json:"data"`
}

type updateLogRequest struct {
	Data *model.LogPatch `json:"data"`
}

// Search lists entries of an app (GET /logs/:app_id).
func (h *LogHandler) Search(c echo.Context) error {
	params := service.SearchParams{
		Level:     c.QueryParam("level"),
		Module:    c.QueryParam("module"),
		RequestID: c.QueryParam("request_id"),
		VisitorID: c.QueryParam("visitor_id"),
		Limit:     c.QueryParam("limit"),
		Offset:    c.QueryParam("offset"),
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
	}
	logs, err := h.Service.Search(c.Request().Context(), c.Param("app_id"), params)
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, logs)
}

// Create stores a new entry (POST /logs/:app_id).
func (h *LogHandler) Create(c echo.Context) error {
	var req createLogRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid JSON body", bindDetail(err))
	}
	entry, err := h.Service.Create(c.Request().Context(), c.Param("app_id"), req.Data)
	if err != nil {
		return fail(c, err)
	}
	return response.Created(c, entry)
}

// Retrieve returns one entry, or null data when it does not exist
// (GET /logs/:app_id/:log_id).
func (h *LogHandler) Retrieve(c echo.Context) error {
	entry, err := h.Service.Retrieve(c.Request().Context(), c.Param("app_id"), c.Param("log_id"))
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, entry)
}

// Update patches an entry and responds with its previous state
// (PUT /logs/:app_id/:log_id).
func (h *LogHandler) Update(c echo.Context) error {
	var req updateLogRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid JSON body", bindDetail(err))
	}
	prev, err := h.Service.Update(c.Request().Context(), c.Param("app_id"), c.Param("log_id"), req.Data)
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, prev)
}

// Remove deletes an entry and responds with its last state
// (DELETE /logs/:app_id/:log_id).
func (h *LogHandler) Remove(c echo.Context) error {
	prev, err := h.Service.Remove(c.Request().Context(), c.Param("app_id"), c.Param("log_id"))
	if err != nil {
		return fail(c, err)
	}
	return response.OK(c, prev)
}

func fail(c echo.Context, err error) error {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return response.BadRequest(c, "invalid request", vErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return response.GatewayTimeout(c, "storage timed out", err.Error())
	default:
		return response.InternalError(c, "storage error", err.Error())
	}
}

func bindDetail(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			return he.Internal.Error()
		}
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
