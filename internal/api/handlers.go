package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/tsuite/internal/status"
	"evalgo.org/tsuite/models"
)

// ResourceList is the response of GET /api/v1/resources.
type ResourceList struct {
	Summary   string                          `json:"summary"`
	Count     int                             `json:"count"`
	Hosts     []string                        `json:"hosts"`
	Resources map[models.Kind][]models.Resource `json:"resources"`
}

// StatusResponse is the response of the status endpoints.
type StatusResponse struct {
	CheckedAt time.Time     `json:"checked_at"`
	Hosts     int           `json:"hosts"`
	Failed    int           `json:"failed"`
	Report    status.Report `json:"report"`
}

func (s *Server) healthCheck(c echo.Context) error {
	reg := s.backend.Registry()
	if reg == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  "topology not loaded",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"resources": reg.Len(),
	})
}

func (s *Server) listResources(c echo.Context) error {
	reg := s.backend.Registry()
	if reg == nil {
		return UnavailableError("Topology not loaded", "")
	}

	out := ResourceList{
		Summary:   reg.Summary(),
		Count:     reg.Len(),
		Hosts:     reg.Hosts(),
		Resources: make(map[models.Kind][]models.Resource),
	}
	for _, kind := range reg.Kinds() {
		out.Resources[kind] = reg.ByKind(kind)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getStatus(c echo.Context) error {
	rep, err := s.backend.Status(c.Request().Context())
	if err != nil {
		return UnavailableError("Status check failed", err.Error())
	}
	return c.JSON(http.StatusOK, newStatusResponse(rep))
}

func (s *Server) getStatusByKind(c echo.Context) error {
	kind := models.Kind(c.Param("kind"))
	if !kind.Valid() {
		return BadRequestError("Invalid resource kind", string(kind))
	}

	rep, err := s.backend.Status(c.Request().Context())
	if err != nil {
		return UnavailableError("Status check failed", err.Error())
	}

	hosts, ok := rep[kind]
	if !ok {
		return NotFoundError("Resource kind", string(kind))
	}
	return c.JSON(http.StatusOK, newStatusResponse(status.Report{kind: hosts}))
}

func newStatusResponse(rep status.Report) StatusResponse {
	total, failed := rep.Hosts()
	return StatusResponse{
		CheckedAt: time.Now().UTC(),
		Hosts:     total,
		Failed:    failed,
		Report:    rep,
	}
}
