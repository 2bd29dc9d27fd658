package handler

import (
	"context"

	segmentationapp "github.com/erp/backoffice/internal/application/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SegmentManager is the segment registry as seen by the HTTP layer
type SegmentManager interface {
	Create(ctx context.Context, tenantID uuid.UUID, req segmentationapp.CreateSegmentRequest) (*segmentationapp.SegmentResponse, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*segmentationapp.SegmentResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]segmentationapp.SegmentResponse, int64, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req segmentationapp.UpdateSegmentRequest) (*segmentationapp.SegmentResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListMembers(ctx context.Context, tenantID, segmentID uuid.UUID, filter shared.Filter) ([]segmentationapp.MemberResponse, int64, error)
}

// SegmentHandler handles customer segment endpoints
type SegmentHandler struct {
	BaseHandler
	segments SegmentManager
}

// NewSegmentHandler creates a new SegmentHandler
func NewSegmentHandler(segments SegmentManager) *SegmentHandler {
	return &SegmentHandler{segments: segments}
}

// Create godoc
//
//	@ID				createSegment
//	@Summary		Create a customer segment
//	@Tags			segments
//	@Accept			json
//	@Produce		json
//	@Param			X-Tenant-ID	header		string									true	"Tenant ID"
//	@Param			request		body		segmentationapp.CreateSegmentRequest	true	"Segment definition"
//	@Success		201			{object}	APIResponse[segmentationapp.SegmentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Router			/crm/segments [post]
func (h *SegmentHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	var req segmentationapp.CreateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	segment, err := h.segments.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, segment)
}

// GetByID godoc
//
//	@ID			getSegment
//	@Summary	Get a customer segment
//	@Tags		segments
//	@Produce	json
//	@Param		X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param		id			path		string	true	"Segment ID"	format(uuid)
//	@Success	200			{object}	APIResponse[segmentationapp.SegmentResponse]
//	@Failure	404			{object}	ErrorResponse
//	@Router		/crm/segments/{id} [get]
func (h *SegmentHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid segment ID")
		return
	}

	segment, err := h.segments.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, segment)
}

// List godoc
//
//	@ID			listSegments
//	@Summary	List customer segments
//	@Tags		segments
//	@Produce	json
//	@Param		X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param		page		query		int		false	"Page"		default(1)
//	@Param		page_size	query		int		false	"Page size"	default(20)
//	@Param		search		query		string	false	"Name contains"
//	@Success	200			{object}	APIResponse[[]segmentationapp.SegmentResponse]
//	@Router		/crm/segments [get]
func (h *SegmentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := req.ToFilter()

	segments, total, err := h.segments.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, segments, total, filter.Page, filter.PageSize)
}

// Update godoc
//
//	@ID			updateSegment
//	@Summary	Replace a segment's name, display fields and criteria
//	@Tags		segments
//	@Accept		json
//	@Produce	json
//	@Param		X-Tenant-ID	header		string									true	"Tenant ID"
//	@Param		id			path		string									true	"Segment ID"	format(uuid)
//	@Param		request		body		segmentationapp.UpdateSegmentRequest	true	"Segment definition"
//	@Success	200			{object}	APIResponse[segmentationapp.SegmentResponse]
//	@Failure	404			{object}	ErrorResponse
//	@Failure	409			{object}	ErrorResponse
//	@Router		/crm/segments/{id} [put]
func (h *SegmentHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid segment ID")
		return
	}

	var req segmentationapp.UpdateSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	segment, err := h.segments.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, segment)
}

// Delete godoc
//
//	@ID			deleteSegment
//	@Summary	Delete a segment and its memberships
//	@Tags		segments
//	@Param		X-Tenant-ID	header	string	true	"Tenant ID"
//	@Param		id			path	string	true	"Segment ID"	format(uuid)
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/crm/segments/{id} [delete]
func (h *SegmentHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid segment ID")
		return
	}

	if err := h.segments.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListMembers godoc
//
//	@ID			listSegmentMembers
//	@Summary	List the customers currently in a segment
//	@Tags		segments
//	@Produce	json
//	@Param		X-Tenant-ID	header		string	true	"Tenant ID"
//	@Param		id			path		string	true	"Segment ID"	format(uuid)
//	@Param		page		query		int		false	"Page"		default(1)
//	@Param		page_size	query		int		false	"Page size"	default(20)
//	@Success	200			{object}	APIResponse[[]segmentationapp.MemberResponse]
//	@Failure	404			{object}	ErrorResponse
//	@Router		/crm/segments/{id}/members [get]
func (h *SegmentHandler) ListMembers(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.TenantRequired(c)
		return
	}
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid segment ID")
		return
	}

	req := dto.DefaultListRequest()
	req.OrderBy = "added_at"
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := req.ToFilter()

	members, total, err := h.segments.ListMembers(c.Request.Context(), tenantID, id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, members, total, filter.Page, filter.PageSize)
}
