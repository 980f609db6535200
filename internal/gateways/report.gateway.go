package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openhims/finance-gateway/internal/model"
	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available report endpoints")
)

// DeliveryReceipt is the downstream sink's acknowledgement of one event.
type DeliveryReceipt struct {
	EventUUID  string    `json:"event_uuid"`
	Accepted   bool      `json:"accepted"`
	ReceivedAt time.Time `json:"received_at"`
	Endpoint   string    `json:"endpoint"`
}

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type EndpointState int

const (
	StateHealthy EndpointState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

// Endpoint is one downstream reporting sink. The client prefers the
// highest-scoring healthy endpoint and fails over when the circuit opens.
type Endpoint struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	state            atomic.Int32
	weight           atomic.Int32
	lastHealthCheck  atomic.Int64
	circuitOpenUntil atomic.Int64
}

func NewEndpoint(name, url string, weight int, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		name:    name,
		url:     url,
		client:  client,
		metrics: &EndpointMetrics{},
	}
	e.state.Store(int32(StateHealthy))
	e.weight.Store(int32(weight))
	return e
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) URL() string  { return e.url }

func (e *Endpoint) GetState() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(state EndpointState) {
	e.state.Store(int32(state))
}

func (e *Endpoint) IsAvailable() bool {
	state := e.GetState()
	if state == StateCircuitOpen {
		openUntil := e.circuitOpenUntil.Load()
		if time.Now().Unix() > openUntil {
			// half-open: let one request probe the endpoint
			e.SetState(StateDegraded)
			return true
		}
		return false
	}
	return state != StateUnhealthy
}

// Score ranks the endpoint by success rate, latency and base weight.
// Higher is better; unavailable endpoints score zero.
func (e *Endpoint) Score() float64 {
	if !e.IsAvailable() {
		return 0.0
	}

	successScore := e.metrics.SuccessRate() * 100

	latencyScore := 100.0
	if avg := e.metrics.AvgLatencyMs(); avg > 0 {
		latencyScore = 100.0 * (1.0 - (float64(avg) / 5000.0))
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	recentPenalty := 1.0 - (float64(e.metrics.ConsecutiveFails.Load()) * 0.1)
	if recentPenalty < 0.1 {
		recentPenalty = 0.1
	}

	statePenalty := 1.0
	switch e.GetState() {
	case StateDegraded:
		statePenalty = 0.5
	case StateUnhealthy, StateCircuitOpen:
		statePenalty = 0.0
	}

	baseWeight := float64(e.weight.Load())
	return (successScore*0.4 + latencyScore*0.4 + baseWeight*0.2) * recentPenalty * statePenalty
}

type Config struct {
	Endpoints               []EndpointConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type EndpointConfig struct {
	Name   string
	URL    string
	Weight int
}

// ReportClient fans finance events out to the reporting sinks with
// retry, failover and a per-endpoint circuit breaker.
type ReportClient struct {
	config    *Config
	endpoints []*Endpoint
	mu        sync.RWMutex
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewReportClient(config *Config) (*ReportClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one report endpoint is required")
	}

	client := &ReportClient{
		config:    config,
		endpoints: make([]*Endpoint, 0, len(config.Endpoints)),
		stopCh:    make(chan struct{}),
	}

	for _, ec := range config.Endpoints {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		}
		client.endpoints = append(client.endpoints, NewEndpoint(ec.Name, ec.URL, ec.Weight, httpClient))
		logger.Info("report endpoint registered", "name", ec.Name, "url", ec.URL, "weight", ec.Weight)
	}

	client.wg.Add(1)
	go client.healthChecker()

	return client, nil
}

// SelectBestEndpoint returns the highest-scoring available endpoint.
func (c *ReportClient) SelectBestEndpoint() (*Endpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Endpoint
	var bestScore float64
	for _, e := range c.endpoints {
		if !e.IsAvailable() {
			continue
		}
		if score := e.Score(); score > bestScore {
			bestScore = score
			best = e
		}
	}
	if best == nil {
		return nil, ErrNoAvailableEndpoints
	}
	return best, nil
}

// Deliver posts one finance event, retrying across endpoints until one
// accepts it or the retry budget runs out. The endpoint that accepted is
// recorded in the receipt so the dispatch log can name it.
func (c *ReportClient) Deliver(ctx context.Context, event *model.FinanceEvent) (*DeliveryReceipt, error) {
	reqBody, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		endpoint, err := c.SelectBestEndpoint()
		if err != nil {
			lastErr = err
			continue
		}

		startTime := time.Now()
		response, err := c.doRequest(ctx, endpoint, "POST", "/api/v1/events", reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)
			logger.Warn("event delivery failed, retrying", "error", err, "endpoint", endpoint.name, "attempt", attempt+1)
			lastErr = err
			continue
		}

		endpoint.metrics.RecordSuccess(latency)

		var receipt DeliveryReceipt
		if err := json.Unmarshal(response, &receipt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
		}
		receipt.Endpoint = endpoint.url

		logger.Info("event delivered", "uuid", event.UUID, "entity", event.Entity, "endpoint", endpoint.name, "latency_ms", latency)
		return &receipt, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *ReportClient) doRequest(ctx context.Context, endpoint *Endpoint, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := endpoint.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}

func (c *ReportClient) checkCircuitBreaker(endpoint *Endpoint) {
	consecutiveFails := endpoint.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		endpoint.SetState(StateCircuitOpen)
		openUntil := time.Now().Add(c.config.CircuitBreakerTimeout).Unix()
		endpoint.circuitOpenUntil.Store(openUntil)
		logger.Warn("circuit breaker opened", "endpoint", endpoint.name, "consecutive_fails", consecutiveFails)
	}
}

func (c *ReportClient) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *ReportClient) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	endpoints := make([]*Endpoint, len(c.endpoints))
	copy(endpoints, c.endpoints)
	c.mu.RUnlock()

	for _, endpoint := range endpoints {
		healthy := c.checkEndpointHealth(ctx, endpoint)
		endpoint.lastHealthCheck.Store(time.Now().Unix())

		oldState := endpoint.GetState()
		newState := oldState
		if healthy {
			if oldState == StateUnhealthy || oldState == StateDegraded {
				newState = StateHealthy
			}
		} else if oldState != StateCircuitOpen {
			newState = StateUnhealthy
		}

		if newState != oldState {
			endpoint.SetState(newState)
			logger.Info("report endpoint state changed", "endpoint", endpoint.name, "old_state", stateString(oldState), "new_state", stateString(newState))
		}
	}
}

func (c *ReportClient) checkEndpointHealth(ctx context.Context, endpoint *Endpoint) bool {
	response, err := c.doRequest(ctx, endpoint, "GET", "/health", nil)
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(response, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

type EndpointStats struct {
	Name             string
	URL              string
	State            string
	Score            float64
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}

// GetEndpointStats returns per-endpoint statistics, best first.
func (c *ReportClient) GetEndpointStats() []EndpointStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		stats = append(stats, EndpointStats{
			Name:             e.name,
			URL:              e.url,
			State:            stateString(e.GetState()),
			Score:            e.Score(),
			TotalRequests:    e.metrics.TotalRequests.Load(),
			SuccessfulReqs:   e.metrics.SuccessfulReqs.Load(),
			FailedReqs:       e.metrics.FailedReqs.Load(),
			SuccessRate:      e.metrics.SuccessRate(),
			AvgLatencyMs:     e.metrics.AvgLatencyMs(),
			LastLatencyMs:    e.metrics.LastLatencyMs.Load(),
			ConsecutiveFails: e.metrics.ConsecutiveFails.Load(),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Score > stats[j].Score
	})
	return stats
}

func (c *ReportClient) Close() error {
	close(c.stopCh)
	c.wg.Wait()
	return nil
}

func stateString(state EndpointState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
