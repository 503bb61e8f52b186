// Package fixtures serves static layout pages that exercise the default scenario catalog.
package fixtures

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultAddress is where the fixture server listens when no address is configured.
	DefaultAddress = "127.0.0.1:4000"

	htmlContentTypeConstant        = "text/html; charset=utf-8"
	pageParameterConstant          = "page"
	variantParameterConstant       = "variant"
	healthRouteConstant            = "/healthz"
	layoutRouteConstant            = "/test-layout/:page"
	overflowRouteConstant          = "/overflow/:variant"
	layoutPageTemplateConstant     = "pages/%s.html"
	overflowPageTemplateConstant   = "pages/overflow-%s.html"
	shutdownTimeoutConstant        = 5 * time.Second
	readHeaderTimeoutConstant      = 5 * time.Second
	listenErrorTemplateConstant    = "fixtures.server.listen: %w"
	serveErrorTemplateConstant     = "fixtures.server.serve: %w"
	requestServedMessageConstant   = "fixture request served"
	serverListeningMessageConstant = "fixture server listening"
	serverStoppedMessageConstant   = "fixture server stopped"
	methodFieldNameConstant        = "method"
	pathFieldNameConstant          = "path"
	statusFieldNameConstant        = "status"
	durationFieldNameConstant      = "duration"
	addressFieldNameConstant       = "address"
)

//go:embed pages/*.html
var pageFiles embed.FS

// Route names one fixture page.
type Route struct {
	Path        string
	Description string
}

var knownRoutes = []Route{
	{Path: "/test-layout/basic", Description: "responsive flex and grid layout with a contained 2000px element"},
	{Path: "/test-layout/snap", Description: "mandatory vertical snap sections and a nested snap wrapper"},
	{Path: "/test-layout/stress", Description: "long words, wide tables, fixed widths, code blocks, and a wide svg"},
	{Path: "/test-layout/dynamic", Description: "client side items, wide content toggle, column select, and a ticking counter"},
	{Path: "/overflow/plain", Description: "content that fits every viewport"},
	{Path: "/overflow/contained", Description: "2000px element inside an overflow hidden container"},
	{Path: "/overflow/uncontained", Description: "2000px element that scrolls the page horizontally"},
}

// Routes lists the fixture pages sorted by path.
func Routes() []Route {
	routes := append([]Route(nil), knownRoutes...)
	sort.Slice(routes, func(leftIndex int, rightIndex int) bool {
		return routes[leftIndex].Path < routes[rightIndex].Path
	})
	return routes
}

// Server hosts the fixture pages with gin.
type Server struct {
	engine *gin.Engine
	logger *zap.Logger
}

// NewServer builds the fixture routes. A nil logger disables request logging.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := gin.New()
	server := &Server{engine: engine, logger: logger}

	engine.Use(gin.Recovery(), server.requestLogger())
	engine.GET(healthRouteConstant, func(requestContext *gin.Context) {
		requestContext.JSON(http.StatusOK, gin.H{statusFieldNameConstant: "ok"})
	})
	engine.GET(layoutRouteConstant, func(requestContext *gin.Context) {
		server.servePage(requestContext, fmt.Sprintf(layoutPageTemplateConstant, requestContext.Param(pageParameterConstant)))
	})
	engine.GET(overflowRouteConstant, func(requestContext *gin.Context) {
		server.servePage(requestContext, fmt.Sprintf(overflowPageTemplateConstant, requestContext.Param(variantParameterConstant)))
	})
	return server
}

// Handler exposes the router for httptest and custom listeners.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// Serve accepts connections on listener until executionContext is canceled, then shuts down gracefully.
func (server *Server) Serve(executionContext context.Context, listener net.Listener) error {
	httpServer := &http.Server{Handler: server.engine, ReadHeaderTimeout: readHeaderTimeoutConstant}
	server.logger.Info(serverListeningMessageConstant, zap.String(addressFieldNameConstant, listener.Addr().String()))

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.Serve(listener)
	}()

	select {
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf(serveErrorTemplateConstant, serveError)
	case <-executionContext.Done():
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeoutConstant)
		defer cancel()
		shutdownError := httpServer.Shutdown(shutdownContext)
		server.logger.Info(serverStoppedMessageConstant, zap.String(addressFieldNameConstant, listener.Addr().String()))
		return shutdownError
	}
}

// ListenAndServe listens on address and serves until executionContext is canceled.
func (server *Server) ListenAndServe(executionContext context.Context, address string) error {
	listener, listenError := net.Listen("tcp", address)
	if listenError != nil {
		return fmt.Errorf(listenErrorTemplateConstant, listenError)
	}
	return server.Serve(executionContext, listener)
}

func (server *Server) servePage(requestContext *gin.Context, fileName string) {
	content, readError := pageFiles.ReadFile(fileName)
	if readError != nil {
		requestContext.String(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	requestContext.Data(http.StatusOK, htmlContentTypeConstant, content)
}

func (server *Server) requestLogger() gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		startTime := time.Now()
		requestContext.Next()
		server.logger.Debug(requestServedMessageConstant,
			zap.String(methodFieldNameConstant, requestContext.Request.Method),
			zap.String(pathFieldNameConstant, requestContext.Request.URL.Path),
			zap.Int(statusFieldNameConstant, requestContext.Writer.Status()),
			zap.Duration(durationFieldNameConstant, time.Since(startTime)),
		)
	}
}
