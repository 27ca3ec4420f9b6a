package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
)

// AdminHandler serves /admin/decisions.
type AdminHandler struct {
	Decisions *repository.DecisionRepo
	Log       logger.Logger
}

func NewAdminHandler(decisions *repository.DecisionRepo, log logger.Logger) *AdminHandler {
	if decisions == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	if log == nil {
		log = logger.Default()
	}
	return &AdminHandler{Decisions: decisions, Log: log}
}

type decisionReq struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Status      model.Status        `json:"status"`
	Options     []model.OptionInput `json:"options"`
}

// List returns every decision, newest first, with its options.
func (h *AdminHandler) List(c echo.Context) error {
	list, err := h.Decisions.ListAll(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Create stores a new pending decision.
func (h *AdminHandler) Create(c echo.Context) error {
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	id, err := h.Decisions.Create(c.Request().Context(), req.Title, req.Description, req.Options)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("decision created", "decision_id", id, "options", len(req.Options))
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "id": id})
}

// Update rewrites a decision.  An omitted status keeps the current one.
// An unknown id answers {"ok":true}, as does Delete.
func (h *AdminHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Decisions.Update(c.Request().Context(), id, req.Title, req.Description, req.Status, req.Options); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Delete removes a decision with its options and response.
func (h *AdminHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Decisions.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("decision deleted", "decision_id", id)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
