// Package server wires services, handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"obra-rdo/internal/config"
	"obra-rdo/internal/handler"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/middleware"
	"obra-rdo/internal/model"
	"obra-rdo/internal/service"
	"obra-rdo/internal/storage"
	"obra-rdo/internal/store"
)

type App struct {
	Router  *gin.Engine
	Auth    *service.AuthService
	Reports *service.ReportService
	Drafts  *service.DraftService
	Tokens  *middleware.Tokens
}

func New(cfg *config.Config, stores *store.Stores, files *storage.Attachments) *App {
	authSvc := service.NewAuthService(stores, cfg.Auth)
	userSvc := service.NewUserService(stores, cfg.Auth.DefaultPassword)
	catalogSvc := service.NewCatalogService(stores)
	reportSvc := service.NewReportService(stores, files)
	draftSvc := service.NewDraftService(reportSvc, catalogSvc, cfg.Drafts)
	dashSvc := service.NewDashboardService(stores)
	tokens := middleware.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	authH := handler.NewAuthHandler(authSvc, tokens)
	userH := handler.NewUserHandler(userSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	reportH := handler.NewReportHandler(reportSvc, catalogSvc, files, cfg.Storage.PDFDir)
	draftH := handler.NewDraftHandler(draftSvc, cfg.MaxUploadBytes())
	dashH := handler.NewDashboardHandler(dashSvc)

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()
	r.Use(gin.Recovery(), logger.Requests())
	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-New-Token", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/api/login", authH.Login)

	api := r.Group("/api", tokens.JWTAuth(), middleware.LoadPrincipal(authSvc.Principal))
	api.GET("/me", authH.Me)
	api.POST("/password", authH.ChangePassword)

	g := api.Group("", middleware.RequirePasswordChanged())
	manager := middleware.RequireRole(model.RoleManager)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("/obras", catalogH.ListObras)
	g.GET("/obras/:name", catalogH.GetObra)
	g.POST("/obras", manager, catalogH.CreateObra)
	g.PUT("/obras/:name", manager, catalogH.UpdateObra)
	g.DELETE("/obras/:name", admin, catalogH.DeleteObra)

	g.GET("/funcionarios", catalogH.ListFuncionarios)
	g.GET("/funcionarios/:id", catalogH.GetFuncionario)
	g.POST("/funcionarios", manager, catalogH.CreateFuncionario)
	g.PUT("/funcionarios/:id", manager, catalogH.UpdateFuncionario)
	g.DELETE("/funcionarios/:id", admin, catalogH.DeleteFuncionario)

	g.GET("/equipes", catalogH.ListEquipes)
	g.GET("/equipes/:name", catalogH.GetEquipe)
	g.POST("/equipes", manager, catalogH.CreateEquipe)
	g.PUT("/equipes/:name", manager, catalogH.UpdateEquipe)
	g.DELETE("/equipes/:name", admin, catalogH.DeleteEquipe)

	users := g.Group("/usuarios", admin)
	users.GET("", userH.List)
	users.POST("", userH.Create)
	users.PUT("/:username", userH.Update)
	users.DELETE("/:username", userH.Delete)
	users.POST("/:username/reset-password", userH.ResetPassword)

	g.GET("/relatorios", reportH.List)
	g.GET("/relatorios/next-number", reportH.NextNumber)
	g.GET("/relatorios/export.xlsx", reportH.ExportXLSX)
	g.GET("/relatorios/:id", reportH.Get)
	g.GET("/relatorios/:id/pdf", reportH.PDF)
	g.DELETE("/relatorios/:id", manager, reportH.Delete)
	g.GET("/anexos/*path", reportH.Attachment)

	d := g.Group("/rascunho")
	d.POST("", draftH.Start)
	d.GET("", draftH.Get)
	d.PATCH("", draftH.Patch)
	d.DELETE("", draftH.Discard)
	d.POST("/equipe", draftH.AddCrew)
	d.DELETE("/equipe/:index", draftH.RemoveCrew)
	d.POST("/atividades", draftH.AddActivity)
	d.DELETE("/atividades/:index", draftH.RemoveActivity)
	d.POST("/ocorrencias", draftH.AddIncident)
	d.DELETE("/ocorrencias/:index", draftH.RemoveIncident)
	d.PUT("/materiais", draftH.SetMaterials)
	d.POST("/anexos", draftH.Upload)
	d.POST("/enviar", draftH.Submit)

	g.GET("/dashboard", manager, dashH.Get)

	return &App{Router: r, Auth: authSvc, Reports: reportSvc, Drafts: draftSvc, Tokens: tokens}
}
