// Package api serves the REST and websocket surface over the lights
// controller, effects engine, profiles and cleanup.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/macaron.v1"

	"github.com/scheerer/nightwolf-rgb/internal/cleanup"
	"github.com/scheerer/nightwolf-rgb/internal/effects"
	"github.com/scheerer/nightwolf-rgb/internal/engine"
	"github.com/scheerer/nightwolf-rgb/internal/lights/openrgb"
	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/internal/profiles"
	"github.com/scheerer/nightwolf-rgb/internal/util"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var logger = logging.New("api")

const shutdownTimeout = 5 * time.Second

type Options struct {
	GatewayType string
	Controller  lights.Controller
	Control     *engine.Control
	Profiles    *profiles.Store
	Cleaner     *cleanup.Cleaner
}

type Server struct {
	gatewayType string
	controller  lights.Controller
	control     *engine.Control
	profiles    *profiles.Store
	cleaner     *cleanup.Cleaner

	hub     *Hub
	handler http.Handler
}

type DeviceSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type int32  `json:"type"`
}

// Status is the payload of /api/status and of websocket status messages. Link
// is set for gateways that hold a server connection.
type Status struct {
	Connected   bool            `json:"connected"`
	Gateway     string          `json:"gateway"`
	DeviceCount int             `json:"deviceCount"`
	Devices     []DeviceSummary `json:"devices"`
	Effect      engine.Status   `json:"effect"`
	Link        *openrgb.Status `json:"link,omitempty"`
}

// linkReporter is implemented by gateways that can describe their link.
type linkReporter interface {
	Status() openrgb.Status
}

type errorBody struct {
	Error string `json:"error"`
}

func New(o Options) *Server {
	s := &Server{
		gatewayType: o.GatewayType,
		controller:  o.Controller,
		control:     o.Control,
		profiles:    o.Profiles,
		cleaner:     o.Cleaner,
	}
	s.hub = NewHub(func(ctx context.Context) any { return s.status(ctx) })

	m := macaron.New()
	m.Use(macaron.Recovery())
	m.Use(requestLogger)
	s.routes(m)

	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	mux.Handle("/", m)
	s.handler = mux
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.With(zap.String("addr", addr)).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) routes(m *macaron.Macaron) {
	m.Get("/api/status", s.getStatus)

	m.Group("/api/devices", func() {
		m.Get("", s.listDevices)
		m.Post("/sync", s.syncDevices)
		m.Get("/:id", s.getDevice)
		m.Post("/:id/color", s.setDeviceColor)
		m.Post("/:id/mode", s.setDeviceMode)
		m.Post("/:id/brightness", s.setDeviceBrightness)
	})

	m.Group("/api/profiles", func() {
		m.Get("", s.listProfiles)
		m.Post("", s.createProfile)
		m.Post("/snapshot", s.snapshotProfile)
		m.Get("/:id", s.getProfile)
		m.Put("/:id", s.updateProfile)
		m.Delete("/:id", s.deleteProfile)
		m.Post("/:id/apply", s.applyProfile)
	})

	m.Group("/api/cleanup", func() {
		m.Get("/status", s.cleanupStatus)
		m.Get("/detect", s.cleanupDetect)
		m.Post("/kill-processes", s.cleanupKill)
		m.Post("/disable-services", s.cleanupServices)
		m.Post("/full", s.cleanupFull)
	})

	m.Group("/api/effects", func() {
		m.Get("/status", s.effectStatus)
		m.Post("/start", s.startEffect)
		m.Post("/stop", s.stopEffect)
		m.Get("/metrics", s.effectMetrics)
	})
}

func (s *Server) status(ctx context.Context) Status {
	st := Status{
		Connected: s.controller.Connected(),
		Gateway:   s.gatewayType,
		Devices:   []DeviceSummary{},
		Effect:    s.control.Status(),
	}

	devices, err := s.controller.ListDevices(ctx)
	if err != nil {
		logger.With(zap.Error(err)).Debug("Failed to list devices for status")
	}
	for _, d := range devices {
		st.Devices = append(st.Devices, DeviceSummary{ID: d.ID, Name: d.Name, Type: d.Type})
	}
	st.DeviceCount = len(st.Devices)

	if r, ok := s.controller.(linkReporter); ok {
		link := r.Status()
		st.Link = &link
	}
	return st
}

func (s *Server) getStatus(ctx *macaron.Context) {
	writeJSON(ctx, http.StatusOK, s.status(ctx.Req.Context()))
}

func requestLogger(ctx *macaron.Context) {
	start := time.Now()
	ctx.Next()
	logger.With(zap.String("method", ctx.Req.Method),
		zap.String("path", ctx.Req.URL.Path),
		zap.Int("status", ctx.Resp.Status()),
		zap.Duration("took", time.Since(start))).
		Debug("Request served")
}

func writeJSON(ctx *macaron.Context, status int, v any) {
	ctx.Resp.Header().Set("Content-Type", "application/json")
	ctx.Resp.WriteHeader(status)
	if err := json.NewEncoder(ctx.Resp).Encode(v); err != nil {
		logger.With(zap.Error(err)).Debug("Failed to write response")
	}
}

func writeError(ctx *macaron.Context, status int, err error) {
	writeJSON(ctx, status, errorBody{Error: err.Error()})
}

// fail maps err to a status code: invalid input is 400, unknown resources
// are 404 and the rest is 500.
func fail(ctx *macaron.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, effects.ErrUnknownKind),
		errors.Is(err, effects.ErrInvalidOptions),
		errors.Is(err, profiles.ErrInvalidProfile),
		errors.Is(err, util.ErrInvalidHex):
		status = http.StatusBadRequest
	case errors.Is(err, lights.ErrDeviceNotFound),
		errors.Is(err, profiles.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.With(zap.String("path", ctx.Req.URL.Path), zap.Error(err)).Warn("Request failed")
	}
	writeError(ctx, status, err)
}

var errBadRequest = errors.New("bad request")

func decodeBody(ctx *macaron.Context, v any) error {
	if ctx.Req.Request.Body == nil {
		return badRequest("request body is required")
	}
	if err := json.NewDecoder(ctx.Req.Request.Body).Decode(v); err != nil {
		return badRequest("malformed JSON body: " + err.Error())
	}
	return nil
}

func deviceID(ctx *macaron.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Params(":id"))
	if err != nil {
		return 0, badRequest("device id must be an integer")
	}
	return id, nil
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func (e badRequestError) Is(target error) bool { return target == errBadRequest }

func badRequest(msg string) error {
	return badRequestError(msg)
}
