package server

import (
	"net/http"
	"time"

	"media-hub/domain/repository"
	httpHandler "media-hub/interfaces/http"
	"media-hub/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func InitiateRouter(
	userHandler httpHandler.IUserHandler,
	uploadHandler httpHandler.IUploadHandler,
	accountHandler httpHandler.IAccountHandler,
	agentHandler httpHandler.IAgentHandler,
	userRepository repository.IUser,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("api")
	api.Use(middleware.Auth(userRepository))

	router.POST("/login", userHandler.Login)
	router.POST("/register", userHandler.Register)

	router.POST("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth authorization flow. The callback is hit by the platform's
	// redirect, so it sits outside the authenticated group.
	if accountHandler != nil {
		api.GET("/auth/:platform", accountHandler.GetAuthURL)
		router.GET("/auth/:platform/callback", accountHandler.HandleCallback)

		accounts := api.Group("/accounts")
		{
			accounts.GET("", accountHandler.ListAccounts)
			accounts.DELETE("/:accountId", accountHandler.DisconnectAccount)
			accounts.POST("/:accountId/refresh-profile", accountHandler.RefreshProfile)
		}
	}

	if uploadHandler != nil {
		api.POST("/references", uploadHandler.CreateReference)

		uploads := api.Group("/uploads")
		{
			uploads.POST("", uploadHandler.CreateUpload)
			uploads.GET("", uploadHandler.ListActiveUploads)
			uploads.POST("/:jobId/start", uploadHandler.StartUpload)
			uploads.GET("/:jobId/status", uploadHandler.GetUploadStatus)
			uploads.GET("/:jobId/stream", uploadHandler.StreamUploadStatus)
		}
	}

	if agentHandler != nil {
		agents := api.Group("/agents")
		{
			agents.GET("/:agentId/bindings", agentHandler.ListBindings)
			agents.POST("/:agentId/bindings/merge", agentHandler.MergeBindings)
		}
	}

	return router
}
