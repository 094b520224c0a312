// Package noaa queries the NOAA CO-OPS data getter for water level, tide
// prediction, and current speed readings.
package noaa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"floodguard/internal/models"
	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// DateLayout is the begin_date/end_date format the data getter expects
const DateLayout = "2006-01-02 15:04"

const datagetterPath = "/api/datagetter"

// ErrNoData is returned when the provider answers without a usable value
var ErrNoData = errors.New("no data")

// Options configures the outbound request parameters
type Options struct {
	BaseURL     string
	Datum       string
	Units       string
	TimeZone    string
	Application string
	UserAgent   string
	Timeout     time.Duration
}

// Client fetches readings from the NOAA data getter
type Client struct {
	endpoint   string
	opts       Options
	httpClient *http.Client
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	now        func() time.Time
}

// NewClient creates a new NOAA client
func NewClient(opts Options, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	return &Client{
		endpoint: strings.TrimRight(opts.BaseURL, "/") + datagetterPath,
		opts:     opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// series is a data[] record from water_level and currents
type series struct {
	T string `json:"t"`
	V string `json:"v"`
	S string `json:"s"`
}

// prediction is a predictions[] record
type prediction struct {
	T    string `json:"t"`
	V    string `json:"v"`
	Type string `json:"type"`
}

type apiError struct {
	Message string `json:"message"`
}

type response struct {
	Data        []series     `json:"data"`
	Predictions []prediction `json:"predictions"`
	Error       *apiError    `json:"error"`
}

// WaterLevel returns the latest observed water level in the past hour
func (c *Client) WaterLevel(ctx context.Context, station string) (*models.Reading, error) {
	now := c.now().UTC()
	params := c.params("water_level", station, now.Add(-time.Hour), now)

	resp, err := c.get(ctx, models.ProductWaterLevel, params)
	if err != nil {
		return nil, err
	}

	for i := len(resp.Data) - 1; i >= 0; i-- {
		if v, ok := parseValue(resp.Data[i].V); ok {
			return c.reading(models.ProductWaterLevel, station, v, resp.Data[i].T, now), nil
		}
	}
	return nil, fmt.Errorf("water level for station %s: %w", station, ErrNoData)
}

// HighTide returns the soonest high tide predicted in the next 24 hours
func (c *Client) HighTide(ctx context.Context, station string) (*models.Reading, error) {
	now := c.now().UTC()
	params := c.params("predictions", station, now, now.Add(24*time.Hour))
	params.Set("interval", "hilo")

	resp, err := c.get(ctx, models.ProductTides, params)
	if err != nil {
		return nil, err
	}

	for _, p := range resp.Predictions {
		if p.Type != "H" {
			continue
		}
		if v, ok := parseValue(p.V); ok {
			return c.reading(models.ProductTides, station, v, p.T, now), nil
		}
	}
	return nil, fmt.Errorf("high tide for station %s: %w", station, ErrNoData)
}

// CurrentSpeed returns the latest observed current speed in the past hour
func (c *Client) CurrentSpeed(ctx context.Context, station string) (*models.Reading, error) {
	now := c.now().UTC()
	params := c.params("currents", station, now.Add(-time.Hour), now)
	// currents have no vertical datum
	params.Del("datum")

	resp, err := c.get(ctx, models.ProductCurrents, params)
	if err != nil {
		return nil, err
	}

	for i := len(resp.Data) - 1; i >= 0; i-- {
		if v, ok := parseValue(resp.Data[i].S); ok {
			return c.reading(models.ProductCurrents, station, v, resp.Data[i].T, now), nil
		}
	}
	return nil, fmt.Errorf("current speed for station %s: %w", station, ErrNoData)
}

// Fetch dispatches to the query for a single product
func (c *Client) Fetch(ctx context.Context, product models.Product, station string) (*models.Reading, error) {
	switch product {
	case models.ProductWaterLevel:
		return c.WaterLevel(ctx, station)
	case models.ProductTides:
		return c.HighTide(ctx, station)
	case models.ProductCurrents:
		return c.CurrentSpeed(ctx, station)
	default:
		return nil, fmt.Errorf("unsupported product %q", product)
	}
}

func (c *Client) params(product, station string, begin, end time.Time) url.Values {
	q := url.Values{}
	q.Set("product", product)
	q.Set("application", c.opts.Application)
	q.Set("station", station)
	q.Set("begin_date", begin.UTC().Format(DateLayout))
	q.Set("end_date", end.UTC().Format(DateLayout))
	q.Set("datum", c.opts.Datum)
	q.Set("units", c.opts.Units)
	q.Set("time_zone", c.opts.TimeZone)
	q.Set("format", "json")
	return q
}

func (c *Client) get(ctx context.Context, product models.Product, params url.Values) (*response, error) {
	timer := c.metrics.NewTimer(c.metrics.NOAARequestDuration.WithLabelValues(string(product)))
	defer timer.ObserveDuration()

	resp, err := c.do(ctx, params)
	if err != nil {
		status := "error"
		if errors.Is(err, ErrNoData) {
			status = "no_data"
		}
		c.metrics.RecordNOAARequest(string(product), status)
		c.logger.Debug(ctx, "[NOAA_REQUEST] Request failed", logging.Fields{
			"product": product,
			"station": params.Get("station"),
			"error":   err.Error(),
		})
		return nil, err
	}

	c.metrics.RecordNOAARequest(string(product), "success")
	return resp, nil
}

func (c *Client) do(ctx context.Context, params url.Values) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NOAA request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("NOAA API error: %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode NOAA response: %w", err)
	}

	if body.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, body.Error.Message)
	}

	return &body, nil
}

func (c *Client) reading(product models.Product, station string, value float64, t string, fallback time.Time) *models.Reading {
	ts, err := time.ParseInLocation(DateLayout, t, time.UTC)
	if err != nil {
		ts = fallback
	}
	return &models.Reading{
		Value:     value,
		Unit:      unitFor(product, c.opts.Units),
		Timestamp: ts,
		StationID: station,
		Product:   product,
	}
}

func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func unitFor(product models.Product, units string) string {
	english := units == "english"
	if product == models.ProductCurrents {
		if english {
			return "knots"
		}
		return "cm/s"
	}
	if english {
		return "ft"
	}
	return "m"
}
