package api

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"
)

// mountPprof serves the runtime profiles under /debug/pprof. Callers put it
// behind auth.
func mountPprof(g *gin.RouterGroup) {
	d := g.Group("/debug/pprof")
	d.GET("/", gin.WrapF(pprof.Index))
	d.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	d.GET("/profile", gin.WrapF(pprof.Profile))
	d.GET("/symbol", gin.WrapF(pprof.Symbol))
	d.POST("/symbol", gin.WrapF(pprof.Symbol))
	d.GET("/trace", gin.WrapF(pprof.Trace))
	// Named profiles (heap, goroutine, ...) go through Index.
	d.GET("/:profile", gin.WrapF(pprof.Index))
}
