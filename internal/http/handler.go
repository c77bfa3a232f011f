package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"platewatch/internal/domain/plate"
	"platewatch/internal/registry"
	"platewatch/internal/service"
)

type Handler struct {
	plateService     *service.PlateService
	detectionService *service.DetectionService
	log              zerolog.Logger
}

func NewHandler(
	plateService *service.PlateService,
	detectionService *service.DetectionService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		plateService:     plateService,
		detectionService: detectionService,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/detections", h.createDetection)
		public.POST("/reconcile", h.reconcile)
		public.GET("/plates", h.listPlates)
		public.GET("/events", h.listEvents)
	}

	protected := r.Group("/api/v1/registry")
	protected.Use(authMiddleware)
	{
		protected.POST("/reload", h.reloadRegistry)
		protected.PUT("/plates", h.setPlateStatus)
	}
}

func (h *Handler) createDetection(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}

	frameNumber := 0
	if f := strings.TrimSpace(c.PostForm("frame")); f != "" {
		parsed, err := strconv.Atoi(f)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("frame must be a non-negative integer"))
			return
		}
		frameNumber = parsed
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded image")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("unsupported or corrupt image"))
		return
	}

	result, err := h.detectionService.ProcessFrame(c.Request.Context(), frameNumber, img, fileHeader.Filename)
	if err != nil {
		h.log.Error().Err(err).Int("frame", frameNumber).Msg("failed to process frame")
		c.JSON(http.StatusBadGateway, errorResponse("detection failed"))
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

func (h *Handler) reconcile(c *gin.Context) {
	var results plate.Results
	if err := c.ShouldBindJSON(&results); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(service.Reconcile(results, h.plateService.Registry())))
}

func (h *Handler) listPlates(c *gin.Context) {
	plateQuery := c.Query("plate")
	if strings.TrimSpace(plateQuery) == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate parameter is required"))
		return
	}

	lookup := h.plateService.Lookup(plateQuery)
	resp := gin.H{"registry": lookup}

	plates, err := h.plateService.FindPlates(c.Request.Context(), plateQuery)
	switch {
	case err == nil:
		resp["stored"] = plates
	case errors.Is(err, service.ErrDatabaseDisabled):
	case errors.Is(err, service.ErrNotFound) && lookup.Known:
	default:
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(resp))
}

func (h *Handler) listEvents(c *gin.Context) {
	var plateQuery *string
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plateQuery = &p
	}

	var status *string
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		status = &st
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.plateService.FindEvents(c.Request.Context(), plateQuery, status, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) reloadRegistry(c *gin.Context) {
	reg, err := h.plateService.ReloadRegistry(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"plates":       reg.Len(),
		"skipped_rows": reg.Skipped(),
	})
}

type setPlateStatusRequest struct {
	Plate  string `json:"plate" binding:"required"`
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setPlateStatus(c *gin.Context) {
	var req setPlateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	rec, err := h.plateService.SetPlateStatus(c.Request.Context(), req.Plate, req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(rec))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrDatabaseDisabled):
		c.JSON(http.StatusNotImplemented, errorResponse(err.Error()))
	case errors.Is(err, registry.ErrResourceUnavailable):
		h.log.Error().Err(err).Msg("registry source unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("registry source unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
