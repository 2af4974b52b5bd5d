package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/logger"
	"obra-rdo/internal/middleware"
	"obra-rdo/internal/model"
	"obra-rdo/internal/service"
	"obra-rdo/internal/storage"
)

// DraftHandler exposes the report builder under /api/rascunho.
type DraftHandler struct {
	drafts    *service.DraftService
	maxUpload int64
}

func NewDraftHandler(drafts *service.DraftService, maxUpload int64) *DraftHandler {
	return &DraftHandler{drafts: drafts, maxUpload: maxUpload}
}

func (h *DraftHandler) Start(c *gin.Context) {
	c.JSON(http.StatusCreated, h.drafts.Start(middleware.Principal(c)))
}

func (h *DraftHandler) Get(c *gin.Context) {
	reply(c)(h.drafts.Get(middleware.Principal(c)))
}

func (h *DraftHandler) Patch(c *gin.Context) {
	var req model.DraftHeader
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	reply(c)(h.drafts.Patch(c.Request.Context(), middleware.Principal(c), req))
}

func (h *DraftHandler) Discard(c *gin.Context) {
	if err := h.drafts.Discard(middleware.Principal(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DraftHandler) AddCrew(c *gin.Context) {
	var req model.CrewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	reply(c)(h.drafts.AddCrew(c.Request.Context(), middleware.Principal(c), req.Funcionario))
}

func (h *DraftHandler) RemoveCrew(c *gin.Context) {
	if i, ok := indexParam(c); ok {
		reply(c)(h.drafts.RemoveCrew(middleware.Principal(c), i))
	}
}

func (h *DraftHandler) AddActivity(c *gin.Context) {
	var req model.Atividade
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	reply(c)(h.drafts.AddActivity(middleware.Principal(c), req))
}

func (h *DraftHandler) RemoveActivity(c *gin.Context) {
	if i, ok := indexParam(c); ok {
		reply(c)(h.drafts.RemoveActivity(middleware.Principal(c), i))
	}
}

func (h *DraftHandler) AddIncident(c *gin.Context) {
	var req model.Ocorrencia
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	reply(c)(h.drafts.AddIncident(middleware.Principal(c), req))
}

func (h *DraftHandler) RemoveIncident(c *gin.Context) {
	if i, ok := indexParam(c); ok {
		reply(c)(h.drafts.RemoveIncident(middleware.Principal(c), i))
	}
}

func (h *DraftHandler) SetMaterials(c *gin.Context) {
	var req model.Materiais
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	reply(c)(h.drafts.SetMaterials(middleware.Principal(c), req))
}

// Upload handles POST /api/rascunho/anexos (multipart: file, kind, index).
func (h *DraftHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file larger than %d MB", h.maxUpload>>20)})
		return
	}
	kind := c.PostForm("kind")
	if !storage.ValidKind(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}
	index := 0
	if v := c.PostForm("index"); v != "" {
		if index, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
			return
		}
	}

	f, err := file.Open()
	if err != nil {
		respondErr(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		respondErr(c, err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file larger than %d MB", h.maxUpload>>20)})
		return
	}
	logger.Debug("draft.upload", "user", middleware.Principal(c).Username, "kind", kind, "file", file.Filename, "size", len(data))
	reply(c)(h.drafts.AttachFile(middleware.Principal(c), kind, index, file.Filename, data))
}

func (h *DraftHandler) Submit(c *gin.Context) {
	r, err := h.drafts.Submit(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// reply writes a draft operation's result.
func reply(c *gin.Context) func(model.Draft, error) {
	return func(d model.Draft, err error) {
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}
