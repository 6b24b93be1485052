package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/pkg/logger"
)

const (
	DefaultOpenWeatherBaseURL = "https://api.openweathermap.org"
	currentWeatherPath        = "/data/2.5/weather"
	maxPayloadBytes           = 1 << 20
)

// OpenWeatherOptions configures an OpenWeatherProvider.
type OpenWeatherOptions struct {
	BaseURL string
	APIKey  string
	City    string

	// ReadyTimeout bounds Ready; PokeInterval is the pause between readiness probes.
	ReadyTimeout time.Duration
	PokeInterval time.Duration

	Backoff BackoffConfig
}

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap's
// current weather endpoint. Temperatures come back in Kelvin.
type OpenWeatherProvider struct {
	name    string
	city    string
	apiKey  string
	baseURL string
	opts    OpenWeatherOptions
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	l       *logger.Logger
	m       *metrics.Metrics
}

func NewOpenWeatherProvider(client *http.Client, opts OpenWeatherOptions, l *logger.Logger, m *metrics.Metrics) *OpenWeatherProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenWeatherBaseURL
	}
	if opts.Backoff == (BackoffConfig{}) {
		opts.Backoff = DefaultBackoff
	}
	if opts.PokeInterval <= 0 {
		opts.PokeInterval = 30 * time.Second
	}

	p := &OpenWeatherProvider{
		name:    "openweathermap",
		city:    opts.City,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/") + currentWeatherPath,
		opts:    opts,
		circuit: newCircuitBreaker("openweather"),
		l:       l,
		m:       m,
	}
	p.httpCfg = HTTPClientConfig{
		Client:  client,
		Backoff: opts.Backoff,
		OnRetry: func(attempt int, err error) {
			m.AddFetchRetry()
			l.Warning("retrying openweather request", map[string]any{
				"attempt": attempt,
				"err":     err.Error(),
			})
		},
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) City() string {
	return p.city
}

func (p *OpenWeatherProvider) newRequest(ctx context.Context) (*http.Request, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}
	if p.city == "" {
		return nil, fmt.Errorf("openweather city is not configured")
	}

	values := url.Values{}
	values.Set("q", p.city)
	values.Set("appid", p.apiKey)

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
}

// Ready polls the endpoint until it answers 2xx. Each probe is a single attempt; the
// whole wait is bounded by ReadyTimeout (when set) and by ctx. 404, 429, 5xx and
// transport errors keep polling; other client errors fail at once.
func (p *OpenWeatherProvider) Ready(ctx context.Context) error {
	if p.httpCfg.Client == nil {
		return errNoHTTPClient
	}
	if p.opts.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ReadyTimeout)
		defer cancel()
	}

	var lastErr error
	for probe := 1; ; probe++ {
		lastErr = p.probe(ctx)
		if lastErr == nil {
			p.l.Debug("openweather endpoint ready", map[string]any{"probes": probe})
			return nil
		}
		// 404 may clear up; any other client error (bad key, bad request) will not.
		if errors.Is(lastErr, errUnexpected) {
			return fmt.Errorf("openweather not ready: %w", lastErr)
		}

		p.l.Debug("openweather endpoint not ready", map[string]any{
			"probe": probe,
			"err":   lastErr.Error(),
		})

		timer := time.NewTimer(p.opts.PokeInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("openweather not ready: %w (last probe: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}

func (p *OpenWeatherProvider) probe(ctx context.Context) error {
	req, err := p.newRequest(ctx)
	if err != nil {
		return err
	}
	resp, err := p.httpCfg.Client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return errEndpointNotFound
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
	return resp.Body.Close()
}

// Fetch retrieves and decodes the current weather payload for the configured city.
func (p *OpenWeatherProvider) Fetch(ctx context.Context) (weather.Payload, error) {
	p.l.Info("fetching current weather", map[string]any{
		"provider": p.name,
		"city":     p.city,
	})

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, p.newRequest)
	if err != nil {
		p.m.AddFetchFailure()
		return nil, fmt.Errorf("openweather request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := weather.DecodePayload(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}

	p.l.Debug("received openweather payload", map[string]any{
		"city":    p.city,
		"payload": payload,
	})
	return payload, nil
}
