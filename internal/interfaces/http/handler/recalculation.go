package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatisticsRecalculator refreshes stored customer statistics
type StatisticsRecalculator interface {
	RecalculateCustomerStatistics(ctx context.Context, tenantID uuid.UUID) (*segmentation.StatsReport, error)
}

// SegmentRecalculator rebuilds segment membership
type SegmentRecalculator interface {
	RecalculateSegments(ctx context.Context, tenantID uuid.UUID) (*segmentation.RecalcReport, error)
}

// RecalculationHandler exposes the two manual recalculation triggers
type RecalculationHandler struct {
	BaseHandler
	statistics StatisticsRecalculator
	segments   SegmentRecalculator
}

// NewRecalculationHandler creates a new RecalculationHandler
func NewRecalculationHandler(statistics StatisticsRecalculator, segments SegmentRecalculator) *RecalculationHandler {
	return &RecalculationHandler{
		statistics: statistics,
		segments:   segments,
	}
}

// StatsReportResponse is a StatsReport with a millisecond duration
type StatsReportResponse struct {
	*segmentation.StatsReport
	DurationMS int64 `json:"duration_ms"`
}

// RecalcReportResponse is a RecalcReport with derived counters
type RecalcReportResponse struct {
	*segmentation.RecalcReport
	SegmentsFailed int   `json:"segments_failed"`
	Complete       bool  `json:"complete"`
	DurationMS     int64 `json:"duration_ms"`
}

func toRecalcReportResponse(r *segmentation.RecalcReport) RecalcReportResponse {
	return RecalcReportResponse{
		RecalcReport:   r,
		SegmentsFailed: r.SegmentsFailed(),
		Complete:       r.Complete(),
		DurationMS:     r.Duration.Milliseconds(),
	}
}

// RecalculateStatistics godoc
//
//	@ID			recalculateCustomerStatistics
//	@Summary	Recompute total spent and order count for every customer of the tenant
//	@Tags		recalculation
//	@Produce	json
//	@Param		X-Tenant-ID	header		string	true	"Tenant ID"
//	@Success	200			{object}	APIResponse[StatsReportResponse]
//	@Failure	503			{object}	ErrorResponse
//	@Router		/crm/customers/statistics/recalculate [post]
func (h *RecalculationHandler) RecalculateStatistics(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	report, err := h.statistics.RecalculateCustomerStatistics(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, StatsReportResponse{StatsReport: report, DurationMS: report.Duration.Milliseconds()})
}

// RecalculateSegments godoc
//
//	@ID				recalculateSegments
//	@Summary		Rebuild membership of every segment of the tenant
//	@Description	Segments that fail are listed in the report and keep their previous members.
//	@Description	Answers 503 with the report when no segment could be processed.
//	@Tags			recalculation
//	@Produce		json
//	@Param			X-Tenant-ID	header		string	true	"Tenant ID"
//	@Success		200			{object}	APIResponse[RecalcReportResponse]
//	@Failure		503			{object}	APIResponse[RecalcReportResponse]
//	@Router			/crm/segments/recalculate [post]
func (h *RecalculationHandler) RecalculateSegments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	report, err := h.segments.RecalculateSegments(c.Request.Context(), tenantID)
	if err != nil {
		if report != nil && errors.Is(err, segmentation.ErrNoSegmentsProcessed) {
			_ = c.Error(err)
			resp := dto.NewErrorResponseWithRequestID(segmentation.CodeNoSegmentsProcessed,
				"No segment could be recalculated", middleware.GetRequestID(c))
			resp.Data = toRecalcReportResponse(report)
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRecalcReportResponse(report))
}
