// Package admin serves the HTTP side of the server: health, Prometheus
// metrics and a small bearer-token protected JSON API.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/metrics"
	"github.com/presbrey/ircd/irc/server"
	log "github.com/sirupsen/logrus"
)

// Backend is what the API reads from and acts on. *server.Server
// satisfies it.
type Backend interface {
	Stats(ctx context.Context) (server.Stats, error)
	ChannelList(ctx context.Context) ([]server.ChannelInfo, error)
	NoticeChannel(ctx context.Context, name, text string) error
}

// API represents the admin HTTP API
type API struct {
	backend Backend
	config  *config.Config
	echo    *echo.Echo
}

// NoticeRequest is the body of a channel notice
type NoticeRequest struct {
	Text string `json:"text" validate:"required,max=400"`
}

// New creates the admin API. collector may be nil, in which case /metrics
// is not served.
func New(backend Backend, cfg *config.Config, collector *metrics.Collector) *API {
	api := &API{
		backend: backend,
		config:  cfg,
		echo:    echo.New(),
	}
	api.echo.HideBanner = true
	api.echo.HidePort = true
	api.echo.Validator = newRequestValidator()
	api.echo.Use(collector.Middleware())

	api.echo.GET("/healthz", api.handleHealth)
	if collector != nil {
		api.echo.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}

	g := api.echo.Group("/api", api.authenticate)
	g.GET("/stats", api.handleStats)
	g.GET("/channels", api.handleChannels)
	g.POST("/channels/:name/notice", api.handleNotice)

	return api
}

// Handler returns the API as an http.Handler
func (a *API) Handler() http.Handler {
	return a.echo
}

// Serve serves the API on ln until Shutdown is called
func (a *API) Serve(ln net.Listener) error {
	log.WithField("addr", ln.Addr().String()).Info("admin API listening")
	a.echo.Listener = ln
	err := a.echo.Start("")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the API gracefully
func (a *API) Shutdown(ctx context.Context) error {
	log.Info("stopping admin API")
	return a.echo.Shutdown(ctx)
}

func (a *API) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

func (a *API) handleStats(c echo.Context) error {
	stats, err := a.backend.Stats(c.Request().Context())
	if err != nil {
		return unavailable(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *API) handleChannels(c echo.Context) error {
	channels, err := a.backend.ChannelList(c.Request().Context())
	if err != nil {
		return unavailable(err)
	}
	if channels == nil {
		channels = []server.ChannelInfo{}
	}
	return c.JSON(http.StatusOK, channels)
}

func (a *API) handleNotice(c echo.Context) error {
	var req NoticeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// the leading '#' is optional since it must be escaped in a URL
	name := c.Param("name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}

	err := a.backend.NoticeChannel(c.Request().Context(), name, req.Text)
	switch {
	case errors.Is(err, server.ErrNoSuchChannel):
		return echo.NewHTTPError(http.StatusNotFound, "Channel not found")
	case err != nil:
		return unavailable(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"channel": name,
	})
}

// authenticate requires a bearer token when any are configured
func (a *API) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokens := a.config.Admin.Tokens
		if len(tokens) == 0 {
			return next(c)
		}

		token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		for _, valid := range tokens {
			if subtle.ConstantTimeCompare([]byte(token), []byte(valid)) == 1 {
				return next(c)
			}
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
}

func unavailable(err error) error {
	log.Warnf("admin request failed: %v", err)
	return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
}
