package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/middleware"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/service"
)

// DecisionHandler serves the endpoints open to every signed-in user.
type DecisionHandler struct {
	Decisions *repository.DecisionRepo
	Approvals *service.ApprovalCoordinator
	Log       logger.Logger
}

func NewDecisionHandler(decisions *repository.DecisionRepo, approvals *service.ApprovalCoordinator, log logger.Logger) *DecisionHandler {
	if decisions == nil || approvals == nil {
		panic("nil dependency passed to NewDecisionHandler")
	}
	if log == nil {
		log = logger.Default()
	}
	return &DecisionHandler{Decisions: decisions, Approvals: approvals, Log: log}
}

type approveReq struct {
	SelectedOptionID flexID `json:"selectedOptionId"`
	Comment          string `json:"comment"`
}

// Pending lists decisions awaiting approval, oldest first.
func (h *DecisionHandler) Pending(c echo.Context) error {
	list, err := h.Decisions.ListPending(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// History lists decided and implemented decisions with the chosen option.
func (h *DecisionHandler) History(c echo.Context) error {
	list, err := h.Decisions.ListHistory(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Approve handles POST /decisions/:id/approve.
func (h *DecisionHandler) Approve(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid decision id"})
	}
	var req approveReq
	if err := c.Bind(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			var ve *repository.ValidationError
			if errors.As(he.Internal, &ve) {
				return writeError(c, h.Log, ve)
			}
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	if err := h.Approvals.Approve(c.Request().Context(), id, uint64(req.SelectedOptionID), req.Comment, u); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
