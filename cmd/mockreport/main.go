package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventRequest is a finance event as published by the gateway.
type EventRequest struct {
	Event  string    `json:"event" binding:"required"`
	Entity string    `json:"entity" binding:"required"`
	UserID int64     `json:"user_id"`
	UUID   string    `json:"uuid" binding:"required"`
	At     time.Time `json:"at"`
}

// ReceiptResponse acknowledges one received event.
type ReceiptResponse struct {
	EventUUID  string    `json:"event_uuid"`
	Accepted   bool      `json:"accepted"`
	ReceivedAt time.Time `json:"received_at"`
	SinkID     string    `json:"sink_id"`
	ErrorCode  string    `json:"error_code,omitempty"`
}

type HealthResponse struct {
	Status     string    `json:"status"`
	SinkID     string    `json:"sink_id"`
	Timestamp  time.Time `json:"timestamp"`
	AcceptRate float64   `json:"accept_rate"`
	Received   int64     `json:"received"`
}

// MockSink simulates a downstream reporting service consuming finance
// events, with a configurable accept rate and latency window.
type MockSink struct {
	acceptRate float64
	minDelay   time.Duration
	maxDelay   time.Duration
	sinkID     string
	received   int64
	rng        *rand.Rand
}

func NewMockSink(acceptRate float64, minDelay, maxDelay time.Duration) *MockSink {
	return &MockSink{
		acceptRate: acceptRate,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		sinkID:     "MOCK_SINK_" + uuid.New().String()[:8],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockSink) ingest(req *EventRequest) *ReceiptResponse {
	time.Sleep(m.randomDelay())

	response := &ReceiptResponse{
		EventUUID:  req.UUID,
		ReceivedAt: time.Now(),
		SinkID:     m.sinkID,
	}

	if m.shouldAccept() {
		m.received++
		response.Accepted = true

		log.Info().
			Str("event_uuid", req.UUID).
			Str("entity", req.Entity).
			Str("event", req.Event).
			Msg("event ingested")
	} else {
		response.Accepted = false
		response.ErrorCode = "INGEST_REJECTED"

		log.Warn().
			Str("event_uuid", req.UUID).
			Str("entity", req.Entity).
			Msg("event rejected")
	}

	return response
}

func (m *MockSink) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockSink) shouldAccept() bool {
	return m.rng.Float64() < m.acceptRate
}

type Handler struct {
	sink *MockSink
}

func NewHandler(sink *MockSink) *Handler {
	return &Handler{sink: sink}
}

func (h *Handler) ReceiveEvent(c *gin.Context) {
	var req EventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	response := h.sink.ingest(&req)

	statusCode := http.StatusOK
	if !response.Accepted {
		statusCode = http.StatusAccepted // accepted the request, rejected the event
	}

	c.JSON(statusCode, response)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	// simulate occasional downtime
	if h.sink.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "sink temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		SinkID:     h.sink.sinkID,
		Timestamp:  time.Now(),
		AcceptRate: h.sink.acceptRate,
		Received:   h.sink.received,
	})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		AcceptRate *float64 `json:"accept_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.AcceptRate != nil {
		if *config.AcceptRate >= 0 && *config.AcceptRate <= 1.0 {
			h.sink.acceptRate = *config.AcceptRate
			log.Info().Float64("rate", *config.AcceptRate).Msg("updated accept rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "configuration updated",
		"accept_rate": h.sink.acceptRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/events", handler.ReceiveEvent)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	acceptRate := getEnvFloat("ACCEPT_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 500*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("accept_rate", acceptRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock report sink")

	sink := NewMockSink(acceptRate, minDelay, maxDelay)
	handler := NewHandler(sink)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
