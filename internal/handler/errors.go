package handler // declare the package name; contains HTTP handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/repository"
)

// writeError maps domain errors to HTTP responses.  Anything it does not
// recognise is logged and reported as a bare 500.
func writeError(c echo.Context, log logger.Logger, err error) error {
	var ve *repository.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, repository.ErrInvalidSelection):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "option not found for this decision"})
	case errors.Is(err, repository.ErrAlreadyDecided):
		return c.JSON(http.StatusConflict, echo.Map{"error": "decision already decided"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "decision changed concurrently, reload and retry"})
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseID reads the :id path parameter.  Zero is rejected.
func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// flexID decodes an id sent either as a JSON number or as a numeric string.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return &repository.ValidationError{Field: "selectedOptionId", Message: "selectedOptionId must be a positive integer"}
	}
	*f = flexID(n)
	return nil
}
