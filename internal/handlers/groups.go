package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/groups"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// GroupsHandler manages broadcast groups and their membership.
type GroupsHandler struct {
	groups *groups.Service
	logger *slog.Logger
}

func NewGroupsHandler(log *slog.Logger, groupService *groups.Service) *GroupsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GroupsHandler{
		groups: groupService,
		logger: log.With(slog.String("handler", "groups")),
	}
}

func (h *GroupsHandler) Register(e *echo.Echo) {
	g := e.Group("/groups")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/members", h.AddMember)
	g.DELETE("/:id/members/:member", h.RemoveMember)
}

type groupRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type groupResponse struct {
	groups.Group
	Members []string `json:"members,omitempty"`
}

func (h *GroupsHandler) Create(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	group, err := h.groups.Create(c.Request().Context(), accountID, req.Name, req.Description)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, group)
}

func (h *GroupsHandler) List(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.groups.ListByOwner(c.Request().Context(), accountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []groups.Group{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *GroupsHandler) Get(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	group, err := h.groups.Get(ctx, c.Param("id"))
	if err != nil {
		return groupError(err)
	}
	if group.OwnerID != accountID {
		return echo.NewHTTPError(http.StatusForbidden, groups.ErrNotOwner.Error())
	}
	members, err := h.groups.Members(ctx, group.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groupResponse{Group: group, Members: members})
}

func (h *GroupsHandler) Update(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	group, err := h.groups.Update(c.Request().Context(), accountID, c.Param("id"), req.Name, req.Description)
	if err != nil {
		return groupError(err)
	}
	return c.JSON(http.StatusOK, group)
}

func (h *GroupsHandler) Delete(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.groups.Delete(c.Request().Context(), accountID, c.Param("id")); err != nil {
		return groupError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type addMemberRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

func (h *GroupsHandler) AddMember(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req addMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.groups.AddMember(c.Request().Context(), accountID, c.Param("id"), req.PhoneNumber); err != nil {
		if errors.Is(err, whatsapp.ErrInvalidPhone) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return groupError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *GroupsHandler) RemoveMember(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.groups.RemoveMember(c.Request().Context(), accountID, c.Param("id"), c.Param("member")); err != nil {
		return groupError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func groupError(err error) error {
	switch {
	case errors.Is(err, groups.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, groups.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
