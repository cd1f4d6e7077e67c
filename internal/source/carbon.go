package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"carbonalert/internal/config"
	"carbonalert/internal/logger"
	"carbonalert/internal/models"
)

// carbonTimeLayout is the provider's minute-resolution timestamp format.
const carbonTimeLayout = "2006-01-02T15:04Z"

// carbonTime unmarshals the provider's timestamp format.
type carbonTime struct {
	time.Time
}

func (t *carbonTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := time.Parse(carbonTimeLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// Wire shapes of the regional endpoint. The body is either a data
// document or an error document.
type regionalResponse struct {
	Data  []regionalData `json:"data"`
	Error *providerError `json:"error"`
}

type regionalData struct {
	RegionID  int            `json:"regionid"`
	DNORegion string         `json:"dnoregion"`
	ShortName string         `json:"shortname"`
	Data      []forecastItem `json:"data"`
}

type forecastItem struct {
	From      carbonTime    `json:"from"`
	To        carbonTime    `json:"to"`
	Intensity intensityItem `json:"intensity"`
}

type intensityItem struct {
	Forecast float64 `json:"forecast"`
	Actual   float64 `json:"actual"`
	Index    string  `json:"index"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client fetches regional readings from the carbon-intensity API. A
// single Client is shared by all region loops; the rate limiter keeps the
// combined request rate below the provider's tolerance and the circuit
// breaker stops hammering an unavailable provider.
type Client struct {
	baseURL string
	hc      *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a provider client from config.
func NewClient(cfg config.ProviderConfig) *Client {
	log := logger.WithComponent("source")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "carbon-provider",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		hc: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: breaker,
	}
}

// Fetch retrieves the current forecast reading for region. The returned
// error is a *FetchError unless the context was cancelled.
func (c *Client) Fetch(ctx context.Context, region models.Region) (*models.IntensityReading, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, region)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{Kind: KindTimeout, Err: err}
		}
		return nil, err
	}
	return out.(*models.IntensityReading), nil
}

func (c *Client) fetch(ctx context.Context, region models.Region) (*models.IntensityReading, error) {
	url := fmt.Sprintf("%s/regional/regionid/%d", c.baseURL, region.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformed, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Timeouts and connection errors both mean the provider is
		// unreachable right now; they share the timeout kind.
		return nil, &FetchError{Kind: KindTimeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:   KindHTTPStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var body regionalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{Kind: KindMalformed, Err: err}
	}

	return readingFromResponse(region, &body)
}

// readingFromResponse extracts the first forecast window for the region.
func readingFromResponse(region models.Region, body *regionalResponse) (*models.IntensityReading, error) {
	if body.Error != nil {
		return nil, &FetchError{
			Kind: KindMalformed,
			Err:  fmt.Errorf("provider error %s: %s", body.Error.Code, body.Error.Message),
		}
	}
	if len(body.Data) == 0 || len(body.Data[0].Data) == 0 {
		return nil, &FetchError{
			Kind: KindMalformed,
			Err:  errors.New("response contains no data points"),
		}
	}

	item := body.Data[0].Data[0]

	value := item.Intensity.Forecast
	forecast := true
	if item.Intensity.Actual > 0 {
		value = item.Intensity.Actual
		forecast = false
	}

	return &models.IntensityReading{
		RegionID: region.ID,
		Value:    value,
		Index:    item.Intensity.Index,
		From:     item.From.Time,
		To:       item.To.Time,
		Forecast: forecast,
	}, nil
}
