// Package web serves the calculators over HTTP: an HTML form per
// calculator, a JSON API and prometheus metrics.
//
// Routes:
//
//	GET  /                              calculator index
//	GET  /calc/:calculator              input form
//	POST /calc/:calculator              result page (optionally saved)
//	GET  /history                       history table with finalize forms
//	POST /history/:index/finalize       finalize a pending experiment
//	POST /api/:calculator               {"inputs": {...}, "save": true}
//	GET  /api/history                   ?module=&status=
//	POST /api/history/:index/finalize   {"final_count": 16000}
//	GET  /api/history.csv
//	GET  /api/reagents
//	PUT  /api/reagents                  {"name": "...", "price_per_unit": "0.05", "unit": "mL"}
//	GET  /healthz
//	GET  /metrics
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/labcalc/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Server is the HTTP front end of one session.
type Server struct {
	sess    *session.Session
	metrics *metrics
	router  *gin.Engine
}

// New wires the routes for sess.
func New(sess *session.Session) *Server {
	s := &Server{sess: sess, metrics: newMetrics()}

	r := gin.New()
	r.Use(s.requestLogger())
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl")))

	r.GET("/", s.index)
	r.GET("/calc/:calculator", s.form)
	r.POST("/calc/:calculator", s.submitForm)
	r.GET("/history", s.historyPage)
	r.POST("/history/:index/finalize", s.finalizeForm)

	api := r.Group("/api")
	{
		api.POST("/:calculator", s.calculate)
		api.GET("/history", s.listHistory)
		api.GET("/history.csv", s.exportCSV)
		api.POST("/history/:index/finalize", s.finalize)
		api.GET("/reagents", s.listReagents)
		api.PUT("/reagents", s.setReagent)
	}

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.sess.Log.Info().Str("addr", addr).Msg("serving")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.sess.Log.Info().Msg("server stopped")
	return nil
}

// requestLogger logs each request with method, path, status and latency.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.sess.Log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	historyStatus := "ok"
	if _, err := s.sess.History.List(c.Request.Context()); err != nil {
		historyStatus = "error"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ok":      status == http.StatusOK,
		"history": historyStatus,
	})
}
