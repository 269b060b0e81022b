package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotJSON is returned when the provider payload is not valid JSON.
	ErrNotJSON = errors.New("no JSON response received")

	// ErrMissingKey is returned when an observation lacks its identity
	// fields. Identity is non-negotiable, so the whole batch is rejected.
	ErrMissingKey = errors.New("observation is missing station ID or observation time")
)

// Normalizer converts raw provider responses into canonical observations.
// Unknown provider keys are reported once per key name and skipped; they
// never fail a batch.
type Normalizer struct {
	reported map[string]bool
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		reported: make(map[string]bool),
	}
}

// Parse decodes one provider response and returns its canonical
// observations. A response describing zero observations (future date,
// station offline) is success with an empty slice, not an error.
func (n *Normalizer) Parse(raw []byte) ([]Observation, error) {
	var response map[string]json.RawMessage
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	var observations []Observation
	for key, value := range response {
		if key != "observations" {
			n.reportUnknown("response", key)
			continue
		}

		var rawObservations []json.RawMessage
		if err := json.Unmarshal(value, &rawObservations); err != nil {
			return nil, fmt.Errorf("%w: observations is not an array: %v", ErrNotJSON, err)
		}
		for _, rawObs := range rawObservations {
			obs, err := n.normalizeOne(rawObs)
			if err != nil {
				// Identity fields are assumed broken provider-side;
				// reject the whole batch.
				return nil, err
			}
			observations = append(observations, obs)
		}
	}

	return observations, nil
}

// normalizeOne maps a single provider observation, a flat object plus one
// nested "metric" object, into a canonical Observation.
func (n *Normalizer) normalizeOne(raw json.RawMessage) (Observation, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var source map[string]any
	if err := decoder.Decode(&source); err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	obs := Observation{Metrics: make(map[Field]string)}
	for key, value := range source {
		if key == "metric" {
			nested, ok := value.(map[string]any)
			if !ok {
				n.reportUnknown("observation", key)
				continue
			}
			for metricKey, metricValue := range nested {
				field, ignored, known := MapField(metricKey)
				if !known {
					n.reportUnknown("observation/metric", metricKey)
					continue
				}
				if ignored {
					continue
				}
				n.setField(&obs, field, metricValue)
			}
			continue
		}

		field, ignored, known := MapField(key)
		if !known {
			n.reportUnknown("observation", key)
			continue
		}
		if ignored {
			continue
		}
		n.setField(&obs, field, value)
	}

	if obs.StationID == "" || obs.ObservedAt == "" {
		return Observation{}, ErrMissingKey
	}
	return obs, nil
}

// setField assigns a mapped value to the observation. String identity
// fields are copied verbatim; numeric fields are coerced to a one-decimal
// fixed-precision representation so the stored value is textually stable
// across repeated parses.
func (n *Normalizer) setField(obs *Observation, field Field, value any) {
	switch field {
	case FieldStationID:
		obs.StationID, _ = value.(string)
	case FieldTimezone:
		obs.Timezone, _ = value.(string)
	case FieldDateTime:
		obs.ObservedAt, _ = value.(string)
	default:
		number, ok := value.(json.Number)
		if !ok {
			// Null or non-numeric metric; treat as absent.
			return
		}
		d, err := decimal.NewFromString(number.String())
		if err != nil {
			return
		}
		obs.Metrics[field] = d.StringFixed(1)
	}
}

// reportUnknown logs an unrecognized provider key once per key name to
// avoid flooding the log on every poll.
func (n *Normalizer) reportUnknown(scope, key string) {
	id := scope + "/" + key
	if n.reported[id] {
		return
	}
	n.reported[id] = true
	log.Printf("normalize: unknown key %q in %s [ignored]", key, scope)
}
