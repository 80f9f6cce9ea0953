package http

import (
	"github.com/gin-gonic/gin"

	"grundbank/internal/bootstrap"
	"grundbank/internal/repository"
	"grundbank/internal/transport/http/handler"
	"grundbank/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	libRepo := repository.NewLibraryRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)
	imageRepo := repository.NewImageAssetRepository(app.MySQL)
	assistantRepo := repository.NewAssistantRepository(app.MySQL)
	convRepo := repository.NewConversationRepository(app.MySQL)

	uploadDir := app.Config.Ingest.UploadDir
	libraryHandler := handler.NewLibraryHandler(libRepo, docRepo, chunkRepo, imageRepo, app.Index, app.Logger)
	documentHandler := handler.NewDocumentHandler(libRepo, docRepo, chunkRepo, imageRepo, app.Index, app.Publisher, uploadDir, app.Logger)
	assistantHandler := handler.NewAssistantHandler(assistantRepo, libRepo, uploadDir, app.Logger)
	conversationHandler := handler.NewConversationHandler(convRepo, libRepo, docRepo, app.Publisher, uploadDir, app.Logger)
	chatHandler := handler.NewChatHandler(app.RAG, app.Jobs, app.Logger)
	styleHandler := handler.NewStyleHandler(app.Styles)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	libGroup := v1.Group("/libraries")
	libGroup.POST("", libraryHandler.Create)
	libGroup.GET("", libraryHandler.List)
	libGroup.GET("/:id", libraryHandler.Get)
	libGroup.PATCH("/:id/priority", libraryHandler.UpdatePriority)
	libGroup.DELETE("/:id", libraryHandler.Delete)

	docGroup := v1.Group("/documents")
	docGroup.POST("", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id", documentHandler.Status)
	docGroup.DELETE("/:id", documentHandler.Delete)

	assistantGroup := v1.Group("/assistants")
	assistantGroup.POST("", assistantHandler.Create)
	assistantGroup.GET("", assistantHandler.List)
	assistantGroup.GET("/:id", assistantHandler.Get)
	assistantGroup.PUT("/:id", assistantHandler.Update)
	assistantGroup.DELETE("/:id", assistantHandler.Delete)
	assistantGroup.PUT("/:id/libraries", assistantHandler.SetBindings)
	assistantGroup.POST("/:id/template", assistantHandler.UploadTemplate)

	convGroup := v1.Group("/conversations")
	convGroup.POST("", conversationHandler.Create)
	convGroup.GET("", conversationHandler.List)
	convGroup.GET("/:id", conversationHandler.Get)
	convGroup.DELETE("/:id", conversationHandler.Delete)
	convGroup.POST("/:id/inline", conversationHandler.AddInlineText)
	convGroup.POST("/:id/attachments", conversationHandler.AttachFile)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/ask-async", chatHandler.AskAsync)
	chatGroup.GET("/jobs/:id", chatHandler.JobStatus)
	chatGroup.POST("/edit-block", chatHandler.EditBlock)

	styleGroup := v1.Group("/style")
	styleGroup.GET("/rules", styleHandler.Rules)
	styleGroup.PUT("/rules", styleHandler.SetPersonalRules)
	styleGroup.PUT("/global-rules", styleHandler.SetGlobalRules)

	return router
}
