package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/portal-api/internal/middleware"
	"github.com/noah-isme/portal-api/internal/models"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
	"github.com/noah-isme/portal-api/pkg/response"
)

// currentViewer answers 401 and returns false when the request carries no identity.
func currentViewer(c *gin.Context) (models.Viewer, bool) {
	viewer, ok := middleware.CurrentViewer(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Viewer{}, false
	}
	return viewer, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return false
	}
	return true
}

// respondOK writes a 200 envelope carrying the collected response meta.
func respondOK(c *gin.Context, data interface{}, pagination *models.Pagination) {
	response.JSON(c, http.StatusOK, data, pagination, middleware.ExtractMeta(c))
}
