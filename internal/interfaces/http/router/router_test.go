package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	segmentationapp "github.com/erp/backoffice/internal/application/segmentation"
	"github.com/erp/backoffice/internal/domain/segmentation"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/handler"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	g := NewDomainGroup("crm", "/crm")
	assert.Equal(t, "crm", g.Name())
	assert.Equal(t, "/crm", g.Prefix())

	methods := []struct {
		method   string
		register func(path string, handlers ...gin.HandlerFunc) *DomainGroup
		status   int
	}{
		{http.MethodGet, g.GET, http.StatusOK},
		{http.MethodPost, g.POST, http.StatusCreated},
		{http.MethodPut, g.PUT, http.StatusAccepted},
		{http.MethodDelete, g.DELETE, http.StatusNoContent},
	}
	for _, m := range methods {
		status := m.status
		m.register("/items/:id", func(c *gin.Context) { c.Status(status) })
	}

	var seen []string
	g.Use(func(c *gin.Context) {
		seen = append(seen, c.Request.Method)
		c.Next()
	})

	engine := gin.New()
	g.RegisterRoutes(engine.Group("/api/v1"))

	for _, m := range methods {
		t.Run(m.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(m.method, "/api/v1/crm/items/1", nil))
			assert.Equal(t, m.status, w.Code)
		})
	}
	assert.Len(t, seen, len(methods), "group middleware runs for every route")
}

type stubSegmentManager struct {
	created int
}

func (s *stubSegmentManager) Create(_ context.Context, _ uuid.UUID, req segmentationapp.CreateSegmentRequest) (*segmentationapp.SegmentResponse, error) {
	s.created++
	return &segmentationapp.SegmentResponse{ID: uuid.New(), Name: req.Name}, nil
}

func (s *stubSegmentManager) GetByID(context.Context, uuid.UUID, uuid.UUID) (*segmentationapp.SegmentResponse, error) {
	return nil, shared.ErrNotFound
}

func (s *stubSegmentManager) List(context.Context, uuid.UUID, shared.Filter) ([]segmentationapp.SegmentResponse, int64, error) {
	return []segmentationapp.SegmentResponse{}, 0, nil
}

func (s *stubSegmentManager) Update(context.Context, uuid.UUID, uuid.UUID, segmentationapp.UpdateSegmentRequest) (*segmentationapp.SegmentResponse, error) {
	return nil, shared.ErrNotFound
}

func (s *stubSegmentManager) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (s *stubSegmentManager) ListMembers(context.Context, uuid.UUID, uuid.UUID, shared.Filter) ([]segmentationapp.MemberResponse, int64, error) {
	return []segmentationapp.MemberResponse{}, 0, nil
}

type stubRecalculation struct {
	segmentRuns int
	statsRuns   int
}

func (s *stubRecalculation) RecalculateSegments(_ context.Context, tenantID uuid.UUID) (*segmentation.RecalcReport, error) {
	s.segmentRuns++
	return segmentation.NewRecalcReport(tenantID, time.Now()), nil
}

func (s *stubRecalculation) RecalculateCustomerStatistics(_ context.Context, tenantID uuid.UUID) (*segmentation.StatsReport, error) {
	s.statsRuns++
	return &segmentation.StatsReport{TenantID: tenantID}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestEngine(segments *stubSegmentManager, recalc *stubRecalculation) *gin.Engine {
	return NewEngine(EngineConfig{
		CORS:    middleware.CORSConfig{AllowOrigins: []string{"https://backoffice.example.com"}},
		Tracing: middleware.TracingConfig{Enabled: false},
	}, Handlers{
		Segments:      handler.NewSegmentHandler(segments),
		Recalculation: handler.NewRecalculationHandler(recalc, recalc),
		Health:        handler.NewHealthHandler(okPinger{}, "test"),
	})
}

func serve(engine *gin.Engine, method, path string, tenantID uuid.UUID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewEngine(t *testing.T) {
	tenantID := uuid.New()

	t.Run("health needs no tenant", func(t *testing.T) {
		w := serve(newTestEngine(&stubSegmentManager{}, &stubRecalculation{}), http.MethodGet, "/health", uuid.Nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("crm routes need a tenant", func(t *testing.T) {
		w := serve(newTestEngine(&stubSegmentManager{}, &stubRecalculation{}), http.MethodGet, "/api/v1/crm/segments", uuid.Nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeTenantRequired, resp.Error.Code)
	})

	t.Run("segment recalculation is not read as a segment id", func(t *testing.T) {
		recalc := &stubRecalculation{}
		w := serve(newTestEngine(&stubSegmentManager{}, recalc), http.MethodPost, "/api/v1/crm/segments/recalculate", tenantID, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, recalc.segmentRuns)
		assert.Zero(t, recalc.statsRuns)
	})

	t.Run("statistics recalculation", func(t *testing.T) {
		recalc := &stubRecalculation{}
		w := serve(newTestEngine(&stubSegmentManager{}, recalc), http.MethodPost, "/api/v1/crm/customers/statistics/recalculate", tenantID, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, recalc.statsRuns)
		assert.Zero(t, recalc.segmentRuns)
	})

	t.Run("segment crud", func(t *testing.T) {
		segments := &stubSegmentManager{}
		engine := newTestEngine(segments, &stubRecalculation{})

		w := serve(engine, http.MethodPost, "/api/v1/crm/segments", tenantID, `{"name":"VIP"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, segments.created)

		w = serve(engine, http.MethodGet, "/api/v1/crm/segments/"+uuid.NewString(), tenantID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = serve(engine, http.MethodGet, "/api/v1/crm/segments/"+uuid.NewString()+"/members", tenantID, "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(engine, http.MethodDelete, "/api/v1/crm/segments/"+uuid.NewString(), tenantID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		engine := NewEngine(EngineConfig{MaxBodySize: 16}, Handlers{
			Segments:      handler.NewSegmentHandler(&stubSegmentManager{}),
			Recalculation: handler.NewRecalculationHandler(&stubRecalculation{}, &stubRecalculation{}),
			Health:        handler.NewHealthHandler(okPinger{}, "test"),
		})
		w := serve(engine, http.MethodPost, "/api/v1/crm/segments", tenantID, `{"name":"a rather long segment name"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/crm/segments", nil)
		req.Header.Set("Origin", "https://backoffice.example.com")
		w := httptest.NewRecorder()
		newTestEngine(&stubSegmentManager{}, &stubRecalculation{}).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://backoffice.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
