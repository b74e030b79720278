package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusflow/registration-api/internal/service"
	"github.com/campusflow/registration-api/pkg/response"
)

// SectionHandler exposes section reads and roster exports.
type SectionHandler struct {
	sections *service.SectionService
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(sections *service.SectionService) *SectionHandler {
	return &SectionHandler{sections: sections}
}

// Detail godoc
// @Summary Section detail
// @Description Section with its weekly schedule
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *SectionHandler) Detail(c *gin.Context) {
	detail, err := h.sections.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Availability godoc
// @Summary Seat availability
// @Description Cached seat counts for a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/availability [get]
func (h *SectionHandler) Availability(c *gin.Context) {
	view, err := h.sections.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ExportRoster godoc
// @Summary Export section roster
// @Description Download the roster as CSV or PDF
// @Tags Sections
// @Produce text/csv
// @Param id path string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/roster/export [get]
func (h *SectionHandler) ExportRoster(c *gin.Context) {
	sectionID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	data, contentType, err := h.sections.ExportRoster(c.Request.Context(), sectionID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.%s"`, sectionID, ext))
	c.Data(http.StatusOK, contentType, data)
}
