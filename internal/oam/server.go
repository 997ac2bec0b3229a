// Package oam exposes metrics and health over HTTP.
package oam

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/util/httpwrapper"
	logger_util "github.com/free5gc/util/logger"
)

type Route struct {
	Method  string
	Pattern string
	APIFunc gin.HandlerFunc
}

func applyRoutes(group *gin.RouterGroup, routes []Route) {
	for _, route := range routes {
		switch route.Method {
		case "GET":
			group.GET(route.Pattern, route.APIFunc)
		}
	}
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	gatherer   prometheus.Gatherer
	checks     map[string]Pinger
}

func NewServer(bindAddr string, gatherer prometheus.Gatherer, checks map[string]Pinger) (*Server, error) {
	s := &Server{
		router:   logger_util.NewGinWithLogrus(logger.GinLog),
		gatherer: gatherer,
		checks:   checks,
	}
	applyRoutes(s.router.Group(""), s.routes())

	logger.OamLog.Infof("Binding addr: [%s]", bindAddr)
	var err error
	if s.httpServer, err = httpwrapper.NewHttp2Server(bindAddr, "", s.router); err != nil {
		logger.InitLog.Errorf("Initialize OAM server failed: %v", err)
		return nil, err
	}
	s.httpServer.ErrorLog = log.New(logger.OamLog.WriterLevel(logrus.ErrorLevel), "HTTP: ", 0)
	return s, nil
}

func (s *Server) routes() []Route {
	return []Route{
		{Method: "GET", Pattern: "/metrics", APIFunc: gin.WrapH(
			promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))},
		{Method: "GET", Pattern: "/healthz", APIFunc: s.healthz},
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{}
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			logger.OamLog.Warnf("Health check [%s] failed: %+v", name, err)
			body[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	c.JSON(status, body)
}

func (s *Server) Run(wg *sync.WaitGroup) {
	wg.Add(1)
	go s.startServer(wg)
}

func (s *Server) Stop() {
	const defaultShutdownTimeout time.Duration = 2 * time.Second

	if s.httpServer != nil {
		logger.OamLog.Infof("Stop OAM server (listen on %s)", s.httpServer.Addr)
		toCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(toCtx); err != nil {
			logger.OamLog.Errorf("Could not close OAM server: %#v", err)
		}
	}
}

func (s *Server) startServer(wg *sync.WaitGroup) {
	defer func() {
		if p := recover(); p != nil {
			// Print stack for panic to log. Fatalf() will let program exit.
			logger.OamLog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
		}
		wg.Done()
	}()

	logger.OamLog.Infof("Start OAM server (listen on %s)", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.OamLog.Errorf("OAM server error: %v", err)
	}
	logger.OamLog.Warnf("OAM server (listen on %s) stopped", s.httpServer.Addr)
}
