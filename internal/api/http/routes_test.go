package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/pws-ingestion/internal/scheduler"
	"github.com/i474232898/pws-ingestion/internal/store"
	"github.com/i474232898/pws-ingestion/internal/weather"
)

// stubFetcher returns an empty batch for any date.
type stubFetcher struct{}

func (stubFetcher) Name() string { return "stub" }

func (stubFetcher) FetchHistory(ctx context.Context, req weather.HistoryRequest) ([]byte, error) {
	return []byte(`{"observations": []}`), nil
}

func newTestApp(t *testing.T, configured bool) (*fiber.App, *weather.Service) {
	t.Helper()

	events := weather.NewEventLog(10)
	service := weather.NewService(stubFetcher{}, events)
	if configured {
		st, err := store.Open(":memory:")
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		t.Cleanup(func() { st.Close() })

		if err := service.SetStation("XY123"); err != nil {
			t.Fatalf("SetStation: %v", err)
		}
		if err := service.SetCredential("a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0"); err != nil {
			t.Fatalf("SetCredential: %v", err)
		}
		if err := service.AttachStore(st); err != nil {
			t.Fatalf("AttachStore: %v", err)
		}
		if err := service.LoadIndex(); err != nil {
			t.Fatalf("LoadIndex: %v", err)
		}
		if err := service.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})
	sched := scheduler.New(service, events, time.Hour, "06:00", "22:00")
	RegisterRoutes(app, service, sched, events)
	return app, service
}

func TestStatusEndpoint(t *testing.T) {
	app, _ := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Station   string `json:"station"`
		Running   bool   `json:"running"`
		Scheduler string `json:"scheduler"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if body.Station != "XY123" {
		t.Errorf("expected station XY123, got %q", body.Station)
	}
	if !body.Running {
		t.Error("expected running engine")
	}
}

func TestFetchDateValidation(t *testing.T) {
	app, _ := newTestApp(t, true)

	// Malformed date should return 400.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fetch/01-05-2025", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Well-formed date is accepted for asynchronous processing.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/fetch/2025-05-01", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
}

func TestFetchDateUnconfigured(t *testing.T) {
	app, _ := newTestApp(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fetch/2025-05-01", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestObservationsValidation(t *testing.T) {
	app, _ := newTestApp(t, true)

	// Missing query parameters should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/observations?station=XY123", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Reversed range should also return 400.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/observations?station=XY123&from=2025-05-02+00:00:00&to=2025-05-01+00:00:00", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Valid query with no data yields 404.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/observations?station=XY123&from=2025-05-01+00:00:00&to=2025-05-01+23:59:59", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
