package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pockett/agreementflow/internal/app/handlers"
	"github.com/pockett/agreementflow/internal/app/middleware"
)

// New builds the HTTP router. Tracing middleware is attached only when
// tracing is enabled so a disabled collector costs nothing per request.
func New(serviceName string, tracingEnabled bool, agreement *handlers.AgreementHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if tracingEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middleware.RequestDetails())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	agreements := r.Group("/api/loans/:loanId/agreement")
	{
		agreements.POST("/generate", agreement.Generate)
		agreements.POST("/signature", agreement.UploadSignature)
		agreements.POST("/sign", agreement.Sign)
		agreements.GET("/status", agreement.Status)
		agreements.GET("/unsigned", agreement.Unsigned)
		agreements.GET("/signed", agreement.Signed)
		agreements.GET("/document", agreement.Document)
		agreements.DELETE("", agreement.Delete)
	}

	return r
}
