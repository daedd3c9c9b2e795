package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mds-backend/internal/api/middleware"
	"mds-backend/internal/models"
	"mds-backend/internal/services"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/utils"
)

// ProviderHandler serves the regulator read API. Callers without the regulator scope
// only see their own provider's records.
type ProviderHandler struct {
	service *services.ProviderService
}

func NewProviderHandler(service *services.ProviderService) *ProviderHandler {
	return &ProviderHandler{service: service}
}

func (h *ProviderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/vehicles", h.ListVehicles)
	rg.GET("/status_changes", h.StatusChanges)
}

type statusChangesQuery struct {
	StartTime  int64  `form:"start_time"`
	EndTime    int64  `form:"end_time"`
	Limit      int64  `form:"limit"`
	ProviderID string `form:"provider_id"`
}

func (h *ProviderHandler) ListVehicles(c *gin.Context) {
	views, err := h.service.ListVehicles(c.Request.Context(), scopedProvider(c, c.Query("provider_id")))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicles": views})
}

func (h *ProviderHandler) StatusChanges(c *gin.Context) {
	var query statusChangesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.ErrorResponse(c, appErrors.BadParam("invalid query: %s", err.Error()))
		return
	}

	events, err := h.service.StatusChanges(c.Request.Context(), models.EventQuery{
		ProviderID: scopedProvider(c, query.ProviderID),
		Start:      query.StartTime,
		End:        query.EndTime,
		Limit:      query.Limit,
	})
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status_changes": events})
}

// scopedProvider returns the provider filter a caller may use.
func scopedProvider(c *gin.Context, requested string) string {
	if middleware.IsRegulator(c) {
		return requested
	}
	return middleware.GetProviderID(c)
}
