package control

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/driver-agent/internal/api"
	"github.com/richxcame/driver-agent/internal/location"
	"github.com/richxcame/driver-agent/internal/session"
	"github.com/richxcame/driver-agent/pkg/common"
)

// Dispatch is the slice of the connection manager the handler reports on
type Dispatch interface {
	Connected() bool
}

// Handler exposes the agent's local control API. A UI front-end drives
// the ride lifecycle through these endpoints; all session mutation still
// funnels through the engine.
type Handler struct {
	engine   *session.Engine
	platform *api.Client
	dispatch Dispatch
	feed     *location.Feed
}

// NewHandler creates a control API handler
func NewHandler(engine *session.Engine, platform *api.Client, dispatch Dispatch, feed *location.Feed) *Handler {
	return &Handler{
		engine:   engine,
		platform: platform,
		dispatch: dispatch,
		feed:     feed,
	}
}

// RegisterRoutes attaches the control API to the router
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/session", h.GetSession)
		v1.GET("/session/countdown", h.GetCountdown)
		v1.POST("/session/accept", h.AcceptRide)
		v1.POST("/session/reject", h.RejectRide)
		v1.POST("/session/otp", h.SubmitOTP)
		v1.POST("/session/cancel", h.CancelRide)
		v1.POST("/session/complete", h.CompleteRide)
		v1.GET("/cancel-reasons", h.GetCancelReasons)
		v1.POST("/work-status", h.SetWorkStatus)
		v1.POST("/position", h.UpdatePosition)
	}
}

// HealthCheck reports agent liveness and dispatch connectivity. A down
// dispatch link is a passive indicator here, never an error status.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"dispatch_connected": h.dispatch.Connected(),
	})
}

// GetSession returns the live session, or null when idle
func (h *Handler) GetSession(c *gin.Context) {
	common.SuccessResponse(c, h.engine.Current())
}

// GetCountdown returns the remaining offer window in milliseconds
func (h *Handler) GetCountdown(c *gin.Context) {
	common.SuccessResponse(c, gin.H{
		"remaining_ms": h.engine.Remaining().Milliseconds(),
	})
}

// AcceptRide accepts the pending offer
func (h *Handler) AcceptRide(c *gin.Context) {
	if err := h.engine.Accept(c.Request.Context()); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, h.engine.Current())
}

// RejectRequest declines the pending offer
type RejectRequest struct {
	Timeout bool `json:"timeout"`
}

// RejectRide declines the pending offer
func (h *Handler) RejectRide(c *gin.Context) {
	var req RejectRequest
	// Body is optional; an empty body is a manual reject
	_ = c.ShouldBindJSON(&req)

	if err := h.engine.Reject(c.Request.Context(), req.Timeout); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, nil)
}

// OTPRequest carries the code the rider read to the driver
type OTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// SubmitOTP starts the trip on an exact code match
func (h *Handler) SubmitOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "otp is required")
		return
	}

	if err := h.engine.SubmitOTP(c.Request.Context(), req.OTP); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, h.engine.Current())
}

// CancelRequest carries the cancellation reason code
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelRide cancels the live ride with a reason from the reason list
func (h *Handler) CancelRide(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "reason is required")
		return
	}

	if !h.platform.ValidReason(req.Reason) {
		common.ErrorResponse(c, http.StatusBadRequest, "unknown cancellation reason")
		return
	}

	if err := h.engine.Cancel(c.Request.Context(), req.Reason); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, nil)
}

// CompleteRide ends the ride in progress
func (h *Handler) CompleteRide(c *gin.Context) {
	if err := h.engine.Complete(c.Request.Context()); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, nil)
}

// GetCancelReasons returns the server-supplied cancellation reason list
func (h *Handler) GetCancelReasons(c *gin.Context) {
	reasons, err := h.platform.CancelReasons(c.Request.Context())
	if err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, reasons)
}

// WorkStatusRequest toggles driver availability
type WorkStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetWorkStatus toggles the driver's availability on the platform
func (h *Handler) SetWorkStatus(c *gin.Context) {
	var req WorkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.platform.ToggleWorkStatus(c.Request.Context(), *req.Active); err != nil {
		common.AppErrorResponse(c, common.AsAppError(err))
		return
	}
	common.SuccessResponse(c, gin.H{"active": *req.Active})
}

// PositionRequest is one GPS fix pushed by the host platform
type PositionRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// UpdatePosition feeds the latest GPS fix to the location reporter
func (h *Handler) UpdatePosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	h.feed.Update(location.Sample{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	common.SuccessResponse(c, nil)
}
