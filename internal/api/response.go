// Package api implements the HTTP surface: request/response wire schemas,
// authentication, and the gin routes that translate JSON bodies into
// scheduler tasks and cache lookups. Grounded on
// internal/judge/controller/judge_controller.go's controller-struct-with-
// deps shape and pkg/utils/response/response.go's centralized response
// helpers, retargeted to this server's exact wire schema.
package api

import (
	"net/http"

	"evaljudge/internal/apperr"
	"evaljudge/internal/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorBody is the exact failure envelope this surface promises: {error, statusCode}.
type errorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// respondError logs and writes the standard error envelope for err.
func respondError(c *gin.Context, err error) {
	e := apperr.As(err)
	logging.Error(c.Request.Context(), "request failed",
		zap.Int("code", int(e.Code)),
		zap.String("message", e.Error()),
		zap.Any("details", e.Details),
	)
	c.JSON(e.Code.HTTPStatus(), errorBody{Error: e.Error(), StatusCode: e.Code.HTTPStatus()})
}

// respondOK writes a bare JSON body with no envelope, per this surface's
// per-endpoint response shapes.
func respondOK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}
