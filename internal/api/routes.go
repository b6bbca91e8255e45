package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, s *Server) {
	r.SetHTMLTemplate(stackTemplate)

	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/stickers", s.listStickers)

		api.POST("/session", s.createSession)
		api.GET("/session", s.getSession)
		api.POST("/session/images", s.addImage)
		api.POST("/session/qr", s.addQR)
		api.GET("/session/view", s.view)
		api.GET("/session/base", s.baseImage)
		api.GET("/session/layers/:index", s.layerImage)
		api.DELETE("/session/layers/:index", s.removeLayer)
		api.GET("/session/output", s.output)
		api.POST("/session/upload", s.uploadOutput)
	}
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}
