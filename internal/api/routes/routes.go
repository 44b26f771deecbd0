package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/interview-analyzer/internal/api/handlers"
	"github.com/yoockh/interview-analyzer/internal/api/middleware"
)

type Deps struct {
	Banks   *handlers.BankHandler
	Results *handlers.ResultsHandler
	WS      *handlers.InterviewWSHandler

	Logger *logrus.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(d.Logger))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/upload_questions", d.Banks.Upload)
	r.GET("/banks/:bank_id", d.Banks.Get)
	r.GET("/banks/:bank_id/interviews", d.Results.ListByBank)
	r.GET("/results/:session_id", d.Results.Get)

	r.GET("/ws/interview", d.WS.Serve)
}
