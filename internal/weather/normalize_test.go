package weather

import (
	"errors"
	"testing"
)

const sampleObservation = `{
	"stationID": "ISOLIN267",
	"tz": "Europe/Berlin",
	"obsTimeUtc": "2025-05-01T16:39:49Z",
	"obsTimeLocal": "2025-05-01 18:39:49",
	"epoch": 1746117589,
	"lat": 51.129,
	"lon": 7.153,
	"solarRadiationHigh": 167.2,
	"uvHigh": 1.5,
	"winddirAvg": 112,
	"humidityHigh": 26.0,
	"humidityLow": 23.0,
	"humidityAvg": 24.0,
	"qcStatus": -1,
	"metric": {
		"tempHigh": 28.7,
		"tempLow": 28.2,
		"tempAvg": 28.4,
		"windspeedHigh": 6.1,
		"windspeedLow": 0.0,
		"windspeedAvg": 2.5,
		"dewptHigh": 7.3,
		"dewptLow": 5.3,
		"dewptAvg": 6.0,
		"pressureMax": 1008.47,
		"pressureMin": 1008.47,
		"pressureTrend": 0.00,
		"precipRate": 0.00,
		"precipTotal": 0.81
	}
}`

func TestNormalizeFullObservation(t *testing.T) {
	n := NewNormalizer()

	observations, err := n.Parse([]byte(`{"observations": [` + sampleObservation + `]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}

	obs := observations[0]
	if obs.StationID != "ISOLIN267" {
		t.Errorf("expected station ISOLIN267, got %q", obs.StationID)
	}
	if obs.Timezone != "Europe/Berlin" {
		t.Errorf("expected timezone Europe/Berlin, got %q", obs.Timezone)
	}
	if obs.ObservedAt != "2025-05-01 18:39:49" {
		t.Errorf("expected local observation time, got %q", obs.ObservedAt)
	}
	if obs.Date() != "2025-05-01" {
		t.Errorf("expected date 2025-05-01, got %q", obs.Date())
	}
	if obs.TimeOfDay() != "18:39:49" {
		t.Errorf("expected time of day 18:39:49, got %q", obs.TimeOfDay())
	}

	// Numeric fields are coerced to one-decimal fixed precision.
	expected := map[Field]string{
		FieldLatitude:           "51.1",
		FieldWindDirectionAvg:   "112.0",
		FieldTemperatureAvg:     "28.4",
		FieldWindspeedLow:       "0.0",
		FieldPressureMax:        "1008.5",
		FieldPrecipTotal:        "0.8",
		FieldSolarRadiationHigh: "167.2",
	}
	for field, want := range expected {
		got, ok := obs.Metrics[field]
		if !ok {
			t.Errorf("missing metric %s", field.Column())
			continue
		}
		if got != want {
			t.Errorf("metric %s: expected %q, got %q", field.Column(), want, got)
		}
	}

	// Ignored provider keys never become metrics.
	if len(obs.Metrics) != 22 {
		t.Errorf("expected 22 metrics, got %d", len(obs.Metrics))
	}
}

func TestNormalizeUnknownKeysAreTolerated(t *testing.T) {
	n := NewNormalizer()

	payload := `{
		"summaries": "something new",
		"observations": [{
			"stationID": "KTEST1",
			"tz": "America/Denver",
			"obsTimeLocal": "2025-05-01 06:00:00",
			"brandNewField": 42,
			"humidityAvg": 50.0,
			"metric": {
				"tempAvg": 10.0,
				"futureMetric": 1.0
			}
		}]
	}`

	observations, err := n.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(observations))
	}

	obs := observations[0]
	if obs.StationID != "KTEST1" {
		t.Errorf("expected station KTEST1, got %q", obs.StationID)
	}
	if got := obs.Metrics[FieldHumidityAvg]; got != "50.0" {
		t.Errorf("expected humidity 50.0, got %q", got)
	}
	if got := obs.Metrics[FieldTemperatureAvg]; got != "10.0" {
		t.Errorf("expected temperature 10.0, got %q", got)
	}
	if len(obs.Metrics) != 2 {
		t.Errorf("expected 2 metrics, got %d", len(obs.Metrics))
	}
}

func TestNormalizeMissingIdentityRejectsBatch(t *testing.T) {
	n := NewNormalizer()

	payload := `{"observations": [
		{"tz": "Europe/Berlin", "obsTimeLocal": "2025-05-01 06:00:00", "humidityAvg": 50.0},
		` + sampleObservation + `
	]}`

	observations, err := n.Parse([]byte(payload))
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if len(observations) != 0 {
		t.Fatalf("expected no observations from rejected batch, got %d", len(observations))
	}
}

func TestNormalizeEmptyObservations(t *testing.T) {
	n := NewNormalizer()

	observations, err := n.Parse([]byte(`{"observations": []}`))
	if err != nil {
		t.Fatalf("expected empty batch to succeed, got %v", err)
	}
	if len(observations) != 0 {
		t.Fatalf("expected 0 observations, got %d", len(observations))
	}
}

func TestNormalizeMalformedPayload(t *testing.T) {
	n := NewNormalizer()

	if _, err := n.Parse([]byte("not json at all")); !errors.Is(err, ErrNotJSON) {
		t.Fatalf("expected ErrNotJSON, got %v", err)
	}
}

func TestMapField(t *testing.T) {
	field, ignored, known := MapField("tempAvg")
	if !known || ignored || field != FieldTemperatureAvg {
		t.Errorf("tempAvg: expected known temperature field, got (%v, %v, %v)", field, ignored, known)
	}

	_, ignored, known = MapField("epoch")
	if !known || !ignored {
		t.Errorf("epoch: expected known ignored field, got (ignored=%v, known=%v)", ignored, known)
	}

	_, _, known = MapField("somethingElse")
	if known {
		t.Error("somethingElse: expected unknown field")
	}
}
