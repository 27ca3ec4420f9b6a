package handler

import (
	"path/filepath"

	"github.com/labstack/echo/v4"
)

// PageHandler serves the static HTML pages from Dir.  Access to each page
// is decided by the session gateway before the file is read.
type PageHandler struct {
	Dir string
}

// Page returns a handler writing Dir/name.  A missing file is a 404.
func (h *PageHandler) Page(name string) echo.HandlerFunc {
	p := filepath.Join(h.Dir, name)
	return func(c echo.Context) error {
		return c.File(p)
	}
}
