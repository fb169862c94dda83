// Package httpapi serves the ledger read-only over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/incident"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	ledgerPath string
	logger     zerolog.Logger
	opts       Options
}

type incidentFilter struct {
	Type     string
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type incidentListResponse struct {
	Total       int                  `json:"total"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
	LastUpdated string               `json:"last_updated"`
	Incidents   []*incident.Incident `json:"incidents"`
}

// NewServer builds a read-only API server over the ledger file at
// ledgerPath. The document is re-read per request; it is small and this
// keeps the server stateless against pipeline runs.
func NewServer(ledgerPath string, logger zerolog.Logger, opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 20 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		ledgerPath: ledgerPath,
		logger:     logger,
		opts:       opts,
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s.registerRoutes(e)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", httpServer.Addr).Msg("serving ledger API")
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/api/incidents", s.handleIncidents)
}

func (s *Server) handleHealth(c echo.Context) error {
	if _, err := incident.Load(s.ledgerPath); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIncidents(c echo.Context) error {
	filter, err := parseIncidentFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	led, err := incident.Load(s.ledgerPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load ledger")
		return echo.NewHTTPError(http.StatusInternalServerError, "ledger unavailable")
	}

	matched := filterIncidents(led.Incidents, filter)

	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	page := matched[start:end]
	if page == nil {
		page = []*incident.Incident{}
	}

	return c.JSON(http.StatusOK, incidentListResponse{
		Total:       len(matched),
		Page:        filter.Page,
		PageSize:    filter.PageSize,
		LastUpdated: led.LastUpdated,
		Incidents:   page,
	})
}

func parseIncidentFilter(c echo.Context) (incidentFilter, error) {
	filter := incidentFilter{
		Type:     strings.TrimSpace(c.QueryParam("type")),
		Status:   strings.TrimSpace(c.QueryParam("status")),
		Page:     1,
		PageSize: defaultPageSize,
	}

	if filter.Type != "" && !incident.KnownType(filter.Type) {
		return filter, fmt.Errorf("unknown type %q", filter.Type)
	}
	if filter.Status != "" && filter.Status != incident.StatusVerified && filter.Status != incident.StatusUnverified {
		return filter, fmt.Errorf("unknown status %q", filter.Status)
	}

	if raw := strings.TrimSpace(c.QueryParam("from")); raw != "" {
		ts, err := incident.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from date: %v", err)
		}
		filter.From = &ts
	}
	if raw := strings.TrimSpace(c.QueryParam("to")); raw != "" {
		ts, err := incident.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to date: %v", err)
		}
		filter.To = &ts
	}

	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, fmt.Errorf("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := strings.TrimSpace(c.QueryParam("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			return filter, fmt.Errorf("page_size must be in 1..%d", maxPageSize)
		}
		filter.PageSize = size
	}

	return filter, nil
}

func filterIncidents(incidents []*incident.Incident, filter incidentFilter) []*incident.Incident {
	var matched []*incident.Incident
	for _, inc := range incidents {
		if filter.Type != "" && inc.Type != filter.Type {
			continue
		}
		if filter.Status != "" && inc.Status != filter.Status {
			continue
		}
		if filter.From != nil || filter.To != nil {
			date, err := incident.ParseDate(inc.Date)
			if err != nil {
				continue
			}
			if filter.From != nil && date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && date.After(*filter.To) {
				continue
			}
		}
		matched = append(matched, inc)
	}
	return matched
}
