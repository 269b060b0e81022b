package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/pws-ingestion/internal/weather"
	"github.com/sony/gobreaker"
)

// WundergroundProvider implements the weather.Fetcher interface for the
// Weather Underground PWS history API. It returns the raw JSON payload;
// normalization happens in the engine so provider schema drift is handled
// in one place.
type WundergroundProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWundergroundProvider(client *http.Client) *WundergroundProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wunderground",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WundergroundProvider{
		name:    "wunderground",
		baseURL: "https://api.weather.com/v2/pws/history/all",
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (p *WundergroundProvider) Name() string {
	return p.name
}

// FetchHistory downloads one day of history for one station. The API
// expects the date as yyyymmdd.
func (p *WundergroundProvider) FetchHistory(ctx context.Context, req weather.HistoryRequest) ([]byte, error) {
	if req.StationID == "" {
		return nil, fmt.Errorf("station ID is not configured")
	}
	if req.APIKey == "" {
		return nil, fmt.Errorf("wunderground api key is not configured")
	}
	date, err := time.Parse(weather.DateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", req.Date, err)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("stationId", req.StationID)
		values.Set("format", "json")
		values.Set("units", "m")
		values.Set("numericPrecision", "decimal")
		values.Set("date", date.Format("20060102"))
		values.Set("apiKey", req.APIKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("no response content received")
	}
	return body, nil
}
