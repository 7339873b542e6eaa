package router

import (
	"github.com/gin-gonic/gin"

	"sudooom.date.chat/internal/handler"
	"sudooom.date.chat/internal/jwt"
	"sudooom.date.chat/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(
	mode string,
	jwtService *jwt.Service,
	conversationHandler *handler.ConversationHandler,
	walletHandler *handler.WalletHandler,
) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtService))
	{
		conversations := v1.Group("/conversations")
		{
			conversations.POST("", conversationHandler.StartChat)
			conversations.GET("", conversationHandler.ListConversations)
			conversations.GET("/:id", conversationHandler.GetConversation)
			conversations.POST("/:id/messages", conversationHandler.PostMessage)
			conversations.POST("/:id/view", conversationHandler.MarkViewed)
			conversations.DELETE("/:id", conversationHandler.DeleteConversation)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.POST("/topup", walletHandler.TopUp)
		}
	}

	return r
}
