package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"mds-backend/internal/api/middleware"
	"mds-backend/internal/models"
	"mds-backend/internal/services"
	appErrors "mds-backend/pkg/errors"
	"mds-backend/pkg/utils"
)

// AgencyHandler serves the provider-facing submission API.
type AgencyHandler struct {
	service *services.AgencyService
}

func NewAgencyHandler(service *services.AgencyService) *AgencyHandler {
	return &AgencyHandler{service: service}
}

// RegisterRoutes mounts the agency endpoints on an authenticated group.
func (h *AgencyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	vehicles := rg.Group("/vehicles")
	{
		vehicles.POST("", h.RegisterVehicle)
		vehicles.GET("", h.GetVehicles)
		vehicles.POST("/telemetry", h.SubmitTelemetry)
		vehicles.GET("/:device_id", h.GetVehicle)
		vehicles.PUT("/:device_id", h.UpdateVehicle)
		vehicles.POST("/:device_id/event", h.SubmitEvent)
	}
}

type telemetryRequest struct {
	Data []json.RawMessage `json:"data"`
}

func (h *AgencyHandler) RegisterVehicle(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}

	registered, err := h.service.RegisterDevice(c.Request.Context(), middleware.GetProviderID(c), &device)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, registered)
}

func (h *AgencyHandler) GetVehicles(c *gin.Context) {
	views, err := h.service.GetVehicles(c.Request.Context(), middleware.GetProviderID(c))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicles": views})
}

func (h *AgencyHandler) GetVehicle(c *gin.Context) {
	view, err := h.service.GetVehicle(c.Request.Context(), middleware.GetProviderID(c), c.Param("device_id"))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *AgencyHandler) UpdateVehicle(c *gin.Context) {
	var update models.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}

	device, err := h.service.UpdateVehicle(c.Request.Context(), middleware.GetProviderID(c), c.Param("device_id"), update)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

func (h *AgencyHandler) SubmitEvent(c *gin.Context) {
	var event models.VehicleEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}

	result, err := h.service.SubmitEvent(c.Request.Context(), middleware.GetProviderID(c), c.Param("device_id"), &event)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// SubmitTelemetry answers 201 when every item was accepted and 200 when some failed.
func (h *AgencyHandler) SubmitTelemetry(c *gin.Context) {
	var req telemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, utils.BindError(err))
		return
	}
	if req.Data == nil {
		utils.ErrorResponse(c, appErrors.MissingParam("missing data"))
		return
	}

	result, err := h.service.SubmitTelemetry(c.Request.Context(), middleware.GetProviderID(c), req.Data)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Failures) > 0 {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
