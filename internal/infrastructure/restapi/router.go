package restapi

import (
	"net/http/pprof"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the options of the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
	EnablePprof    bool
}

// SetupRouter builds the gin engine serving the token API, metrics and optional pprof.
func SetupRouter(handler *TokenHandler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	// currency ids carry slashes and travel path-escaped
	router.UseRawPath = true
	router.UnescapePathValues = true

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(RequestIDMiddleware())
	router.Use(ZapLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/wallets", handler.ListWallets)

		wallet := v1.Group("/wallets/:walletID")
		wallet.GET("/tokens", handler.GetTokenList)
		wallet.GET("/tokens/stream", handler.StreamTokenList)
		wallet.GET("/tokens/ws", handler.WatchTokenList)
		wallet.POST("/tokens/refresh", handler.RefreshTokenList)
		wallet.POST("/tokens/grouping", handler.ToggleGrouping)
		wallet.POST("/tokens/sorting", handler.ToggleSorting)
		wallet.GET("/currencies/:currencyID/status", handler.GetCurrencyStatus)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.EnablePprof {
		pprofRouter := router.Group("/debug/pprof")
		{
			pprofRouter.GET("/", gin.WrapF(pprof.Index))
			pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
			pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
			pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		}
		logger.Info("Pprof endpoints enabled under /debug/pprof")
	}

	return router
}
