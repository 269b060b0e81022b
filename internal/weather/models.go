package weather

import (
	"sort"
)

// Field identifies a canonical observation field, independent of the
// provider's vocabulary.
type Field uint8

const (
	// fieldIgnored marks provider keys that are recognized but have no
	// canonical home (raw epoch, UTC duplicate of the local time, QC status).
	fieldIgnored Field = iota

	FieldStationID
	FieldTimezone
	FieldDateTime

	FieldLatitude
	FieldLongitude
	FieldSolarRadiationHigh
	FieldUVHigh
	FieldWindDirectionAvg
	FieldHumidityHigh
	FieldHumidityLow
	FieldHumidityAvg
	FieldTemperatureHigh
	FieldTemperatureLow
	FieldTemperatureAvg
	FieldWindspeedHigh
	FieldWindspeedLow
	FieldWindspeedAvg
	FieldWindGustHigh
	FieldWindGustLow
	FieldWindGustAvg
	FieldDewPointHigh
	FieldDewPointLow
	FieldDewPointAvg
	FieldWindChillHigh
	FieldWindChillLow
	FieldWindChillAvg
	FieldHeatIndexHigh
	FieldHeatIndexLow
	FieldHeatIndexAvg
	FieldPressureMax
	FieldPressureMin
	FieldPressureTrend
	FieldPrecipRate
	FieldPrecipTotal

	numFields
)

// Time layouts used throughout the engine. Observation timestamps stay in
// the provider's local time; the local timestamp is the identity key.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
)

// columns maps each canonical field to its storage column name.
var columns = [numFields]string{
	FieldStationID:          "station_id",
	FieldTimezone:           "timezone",
	FieldDateTime:           "date_time",
	FieldLatitude:           "latitude",
	FieldLongitude:          "longitude",
	FieldSolarRadiationHigh: "solar_radiation_high",
	FieldUVHigh:             "uv_high",
	FieldWindDirectionAvg:   "wind_direction_avg_degree",
	FieldHumidityHigh:       "humidity_high_percent",
	FieldHumidityLow:        "humidity_low_percent",
	FieldHumidityAvg:        "humidity_avg_percent",
	FieldTemperatureHigh:    "temperature_high_c",
	FieldTemperatureLow:     "temperature_low_c",
	FieldTemperatureAvg:     "temperature_avg_c",
	FieldWindspeedHigh:      "windspeed_high_kmh",
	FieldWindspeedLow:       "windspeed_low_kmh",
	FieldWindspeedAvg:       "windspeed_avg_kmh",
	FieldWindGustHigh:       "wind_gust_high_kmh",
	FieldWindGustLow:        "wind_gust_low_kmh",
	FieldWindGustAvg:        "wind_gust_avg_kmh",
	FieldDewPointHigh:       "dew_point_high_c",
	FieldDewPointLow:        "dew_point_low_c",
	FieldDewPointAvg:        "dew_point_avg_c",
	FieldWindChillHigh:      "wind_chill_high_c",
	FieldWindChillLow:       "wind_chill_low_c",
	FieldWindChillAvg:       "wind_chill_avg_c",
	FieldHeatIndexHigh:      "heat_index_high_c",
	FieldHeatIndexLow:       "heat_index_low_c",
	FieldHeatIndexAvg:       "heat_index_avg_c",
	FieldPressureMax:        "pressure_max_hpa",
	FieldPressureMin:        "pressure_min_hpa",
	FieldPressureTrend:      "pressure_trend_hpa",
	FieldPrecipRate:         "precipitation_rate_mm",
	FieldPrecipTotal:        "precipitation_total_mm",
}

// providerFields maps the provider's field names to canonical fields.
// Keys mapped to fieldIgnored are recognized but deliberately dropped.
var providerFields = map[string]Field{
	"stationID":          FieldStationID,
	"tz":                 FieldTimezone,
	"obsTimeLocal":       FieldDateTime,
	"obsTimeUtc":         fieldIgnored,
	"epoch":              fieldIgnored,
	"qcStatus":           fieldIgnored,
	"lat":                FieldLatitude,
	"lon":                FieldLongitude,
	"solarRadiationHigh": FieldSolarRadiationHigh,
	"uvHigh":             FieldUVHigh,
	"winddirAvg":         FieldWindDirectionAvg,
	"humidityHigh":       FieldHumidityHigh,
	"humidityLow":        FieldHumidityLow,
	"humidityAvg":        FieldHumidityAvg,
	"tempHigh":           FieldTemperatureHigh,
	"tempLow":            FieldTemperatureLow,
	"tempAvg":            FieldTemperatureAvg,
	"windspeedHigh":      FieldWindspeedHigh,
	"windspeedLow":       FieldWindspeedLow,
	"windspeedAvg":       FieldWindspeedAvg,
	"windgustHigh":       FieldWindGustHigh,
	"windgustLow":        FieldWindGustLow,
	"windgustAvg":        FieldWindGustAvg,
	"dewptHigh":          FieldDewPointHigh,
	"dewptLow":           FieldDewPointLow,
	"dewptAvg":           FieldDewPointAvg,
	"windchillHigh":      FieldWindChillHigh,
	"windchillLow":       FieldWindChillLow,
	"windchillAvg":       FieldWindChillAvg,
	"heatindexHigh":      FieldHeatIndexHigh,
	"heatindexLow":       FieldHeatIndexLow,
	"heatindexAvg":       FieldHeatIndexAvg,
	"pressureMax":        FieldPressureMax,
	"pressureMin":        FieldPressureMin,
	"pressureTrend":      FieldPressureTrend,
	"precipRate":         FieldPrecipRate,
	"precipTotal":        FieldPrecipTotal,
}

// Column returns the storage column name for the field.
func (f Field) Column() string {
	if f == fieldIgnored || f >= numFields {
		return ""
	}
	return columns[f]
}

// MapField resolves a provider field name to its canonical field.
// known is false for provider keys the engine has never heard of; ignored
// is true for keys that are recognized but not persisted.
func MapField(providerKey string) (field Field, ignored bool, known bool) {
	f, ok := providerFields[providerKey]
	if !ok {
		return fieldIgnored, false, false
	}
	return f, f == fieldIgnored, true
}

// metricFields holds the numeric canonical fields in column-name order,
// matching the stable column order used by the storage layer.
var metricFields = func() []Field {
	fields := make([]Field, 0, numFields)
	for f := FieldLatitude; f < numFields; f++ {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Column() < fields[j].Column()
	})
	return fields
}()

// MetricFields returns the numeric canonical fields in column order.
// Identity fields (station, timezone, timestamp) are not included.
func MetricFields() []Field {
	return metricFields
}

// Observation is one normalized weather reading for one station at one
// provider-local timestamp.
type Observation struct {
	StationID  string `json:"stationId"`
	Timezone   string `json:"timezone,omitempty"`
	ObservedAt string `json:"observedAt"` // DateTimeLayout, provider-local

	// Metrics holds the numeric fields present in the source record,
	// rendered as one-decimal fixed-precision strings. Absent fields are
	// absent; zero is a valid physical value and is never a default.
	Metrics map[Field]string `json:"-"`
}

// Date returns the calendar date portion of the observation timestamp.
func (o Observation) Date() string {
	if len(o.ObservedAt) < len(DateLayout) {
		return ""
	}
	return o.ObservedAt[:len(DateLayout)]
}

// TimeOfDay returns the time-of-day portion of the observation timestamp.
func (o Observation) TimeOfDay() string {
	if len(o.ObservedAt) < len(DateTimeLayout) {
		return ""
	}
	return o.ObservedAt[len(DateLayout)+1:]
}

// MetricsByColumn returns the present metrics keyed by column name, for
// JSON projections and storage binding.
func (o Observation) MetricsByColumn() map[string]string {
	out := make(map[string]string, len(o.Metrics))
	for f, v := range o.Metrics {
		out[f.Column()] = v
	}
	return out
}
