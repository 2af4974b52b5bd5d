package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/export"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/middleware"
	"obra-rdo/internal/model"
	"obra-rdo/internal/service"
	"obra-rdo/internal/storage"
)

type ReportHandler struct {
	reports *service.ReportService
	catalog *service.CatalogService
	files   *storage.Attachments
	pdf     export.PDF
	pdfDir  string
}

func NewReportHandler(reports *service.ReportService, catalog *service.CatalogService, files *storage.Attachments, pdfDir string) *ReportHandler {
	h := &ReportHandler{reports: reports, catalog: catalog, files: files, pdfDir: pdfDir}
	h.pdf = export.PDF{Open: func(rel string) (io.ReadCloser, error) { return files.Open(rel) }}
	return h
}

// List handles GET /api/relatorios?obra=&de=&ate=
func (h *ReportHandler) List(c *gin.Context) {
	var f model.ReportFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c)
		return
	}
	list, err := h.reports.List(c.Request.Context(), f, middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReportHandler) NextNumber(c *gin.Context) {
	n, err := h.reports.NextNumber(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"numero_rdo": n})
}

func (h *ReportHandler) Get(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), c.Param("id"), middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PDF renders the report into the PDF directory and sends it as a download.
func (h *ReportHandler) PDF(c *gin.Context) {
	ctx := c.Request.Context()
	r, err := h.reports.Get(ctx, c.Param("id"), middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	obra, err := h.catalog.GetObra(ctx, r.Obra)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		respondErr(c, err)
		return
	}
	path, err := h.pdf.Write(h.pdfDir, r, obra)
	if err != nil {
		logger.Error("pdf.failed", "id", r.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pdf_generation_failed"})
		return
	}
	logger.Info("pdf.generated", "id", r.ID, "path", path)
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(path, export.DownloadName(r))
}

// ExportXLSX handles GET /api/relatorios/export.xlsx with the List filters.
func (h *ReportHandler) ExportXLSX(c *gin.Context) {
	var f model.ReportFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c)
		return
	}
	list, err := h.reports.List(c.Request.Context(), f, middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.RenderXLSX(&buf, list); err != nil {
		logger.Error("xlsx.failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "xlsx_generation_failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="relatorios.xlsx"`)
	c.Data(http.StatusOK, xlsxMime, buf.Bytes())
}

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Attachment handles GET /api/anexos/*path. Only files referenced by a report
// the user can see are served.
func (h *ReportHandler) Attachment(c *gin.Context) {
	rel := strings.TrimPrefix(c.Param("path"), "/")
	id := storage.ReportOf(rel)
	if id == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	r, err := h.reports.Get(c.Request.Context(), id, middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	found := false
	for _, p := range r.AttachmentPaths() {
		if p == rel {
			found = true
			break
		}
	}
	path, err := h.files.Resolve(rel)
	if !found || err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(path)
}
