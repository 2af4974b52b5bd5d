package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"obra-rdo/internal/service"
)

type DashboardHandler struct{ dashboard *service.DashboardService }

func NewDashboardHandler(d *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: d}
}

func (h *DashboardHandler) Get(c *gin.Context) {
	d, err := h.dashboard.Build(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
