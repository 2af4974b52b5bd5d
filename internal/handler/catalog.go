package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/model"
	"obra-rdo/internal/service"
)

type CatalogHandler struct{ catalog *service.CatalogService }

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListObras(c *gin.Context) {
	list, err := h.catalog.ListObras(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) GetObra(c *gin.Context) {
	o, err := h.catalog.GetObra(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *CatalogHandler) CreateObra(c *gin.Context) {
	var o model.Obra
	if err := c.ShouldBindJSON(&o); err != nil {
		badRequest(c)
		return
	}
	o, err := h.catalog.CreateObra(c.Request.Context(), o)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *CatalogHandler) UpdateObra(c *gin.Context) {
	var o model.Obra
	if err := c.ShouldBindJSON(&o); err != nil {
		badRequest(c)
		return
	}
	o, err := h.catalog.UpdateObra(c.Request.Context(), c.Param("name"), o)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *CatalogHandler) DeleteObra(c *gin.Context) {
	if err := h.catalog.DeleteObra(c.Request.Context(), c.Param("name")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) ListFuncionarios(c *gin.Context) {
	list, err := h.catalog.ListFuncionarios(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) GetFuncionario(c *gin.Context) {
	f, err := h.catalog.GetFuncionario(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *CatalogHandler) CreateFuncionario(c *gin.Context) {
	var f model.Funcionario
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c)
		return
	}
	f, err := h.catalog.CreateFuncionario(c.Request.Context(), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *CatalogHandler) UpdateFuncionario(c *gin.Context) {
	var f model.Funcionario
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c)
		return
	}
	f, err := h.catalog.UpdateFuncionario(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *CatalogHandler) DeleteFuncionario(c *gin.Context) {
	if err := h.catalog.DeleteFuncionario(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) ListEquipes(c *gin.Context) {
	list, err := h.catalog.ListEquipes(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogHandler) GetEquipe(c *gin.Context) {
	e, err := h.catalog.GetEquipe(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *CatalogHandler) CreateEquipe(c *gin.Context) {
	var e model.Equipe
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c)
		return
	}
	e, err := h.catalog.CreateEquipe(c.Request.Context(), e)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *CatalogHandler) UpdateEquipe(c *gin.Context) {
	var e model.Equipe
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c)
		return
	}
	e, err := h.catalog.UpdateEquipe(c.Request.Context(), c.Param("name"), e)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *CatalogHandler) DeleteEquipe(c *gin.Context) {
	if err := h.catalog.DeleteEquipe(c.Request.Context(), c.Param("name")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
