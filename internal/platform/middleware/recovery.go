package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/klinik/klinik/internal/platform/apperror"
)

// Recovery converts handler panics into classified internal errors so the
// shared error handler renders them like any other failure.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("request_id", ContextRequestID(c)).
						Str("path", c.Request().URL.Path).
						Str("stack", string(debug.Stack())).
						Msgf("panic recovered: %v", r)
					err = apperror.Internal(fmt.Errorf("panic: %v", r))
				}
			}()
			return next(c)
		}
	}
}
