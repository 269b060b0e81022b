package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/pws-ingestion/internal/scheduler"
	"github.com/i474232898/pws-ingestion/internal/store"
	"github.com/i474232898/pws-ingestion/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, sched *scheduler.Scheduler, events *weather.EventLog) {
	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"station":          service.Station(),
			"running":          service.Running(),
			"uptime":           service.Uptime(),
			"scheduler":        sched.State(),
			"lastDateReceived": events.LastReceived(),
			"recentStatus":     events.Recent(),
		})
	})

	// Manual backfill/repair: fetch a specific past date. Bypasses the
	// active-hours gate; the pipeline itself stays idempotent.
	v1.Post("/fetch/:date", func(c *fiber.Ctx) error {
		date := c.Params("date")
		if _, err := time.Parse(weather.DateLayout, date); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be formatted as yyyy-mm-dd")
		}

		if err := service.FetchDate(date); err != nil {
			if errors.Is(err, weather.ErrNotConfigured) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "ingestion engine is not configured")
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"date":     date,
			"accepted": true,
		})
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		var req observationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := service.Observations(req.Station, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch observations")
		}

		return c.JSON(fiber.Map{
			"station":      req.Station,
			"from":         req.From,
			"to":           req.To,
			"observations": toResponse(observations),
		})
	})
}

// observationsQuery holds query parameters for the observations endpoint.
type observationsQuery struct {
	Station string `validate:"required"`
	From    string `validate:"required,datetime=2006-01-02 15:04:05"`
	To      string `validate:"required,datetime=2006-01-02 15:04:05"`
}

func (q *observationsQuery) bind(c *fiber.Ctx) error {
	q.Station = c.Query("station")
	q.From = c.Query("from")
	q.To = c.Query("to")
	if err := validate.Struct(q); err != nil {
		return err
	}
	// Timestamps sort lexically in this layout.
	if q.To < q.From {
		return errors.New("to must not be before from")
	}
	return nil
}

// observationResponse is the JSON projection of one observation: identity
// fields plus the present metrics keyed by canonical column name.
type observationResponse struct {
	StationID  string            `json:"stationId"`
	Timezone   string            `json:"timezone,omitempty"`
	ObservedAt string            `json:"observedAt"`
	Metrics    map[string]string `json:"metrics"`
}

func toResponse(observations []weather.Observation) []observationResponse {
	out := make([]observationResponse, 0, len(observations))
	for _, obs := range observations {
		out = append(out, observationResponse{
			StationID:  obs.StationID,
			Timezone:   obs.Timezone,
			ObservedAt: obs.ObservedAt,
			Metrics:    obs.MetricsByColumn(),
		})
	}
	return out
}
