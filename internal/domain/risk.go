package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedSeries marks a forecast response whose shape cannot support
// risk computation: no hourly time axis, or value arrays shorter than it.
var ErrMalformedSeries = errors.New("malformed forecast series")

// Overall-risk weights. They must sum to 1.0.
const (
	weightElectrical = 0.2
	weightFlood      = 0.3
	weightHeat       = 0.2
	weightWind       = 0.3
)

// RiskRecord is one department's risk scores for one forecast hour, the unit
// of persistence. Category scores and the overall score are clamped to
// [0,100]; the overall score is rounded to two decimals.
type RiskRecord struct {
	DepartmentCode string  `json:"department_code"`
	DepartmentName string  `json:"department_name"`
	Timestamp      string  `json:"timestamp"` // ISO-8601 local hour, e.g. "2026-09-01T14:00"
	ElectricalRisk float64 `json:"electrical_risk"`
	FloodRisk      float64 `json:"flood_risk"`
	HeatRisk       float64 `json:"heat_risk"`
	WindRisk       float64 `json:"wind_risk"`
	OverallRisk    float64 `json:"overall_risk"`
	CreatedAt      string  `json:"created_at,omitempty"` // set by the store on insert
}

// ComputeRisks scores one region's hourly series, one record per sample in
// source order. Pure: no I/O, no shared state. Null samples score as zero.
// A malformed series yields an error and no records.
func ComputeRisks(series ForecastSeries, region Region) ([]RiskRecord, error) {
	h := series.Hourly
	if len(h.Time) == 0 {
		return nil, fmt.Errorf("%w: hourly time axis missing", ErrMalformedSeries)
	}
	for name, values := range map[string][]*float64{
		"temperature_2m":       h.Temperature,
		"precipitation":        h.Precipitation,
		"wind_gusts_10m":       h.WindGusts,
		"relative_humidity_2m": h.RelativeHumidity,
	} {
		if values != nil && len(values) < len(h.Time) {
			return nil, fmt.Errorf("%w: %s has %d samples for %d hours",
				ErrMalformedSeries, name, len(values), len(h.Time))
		}
	}

	records := make([]RiskRecord, 0, len(h.Time))
	for i, ts := range h.Time {
		temp := sampleAt(h.Temperature, i)
		precip := sampleAt(h.Precipitation, i)
		wind := sampleAt(h.WindGusts, i)
		humidity := sampleAt(h.RelativeHumidity, i)

		electrical := clamp(wind*0.2 + math.Max(humidity-80, 0)*0.1)
		flood := clamp(precip * 2)
		heat := clamp(math.Max(temp-30, 0) * 2)
		windRisk := clamp(wind * 0.3)

		records = append(records, RiskRecord{
			DepartmentCode: region.Code,
			DepartmentName: region.Name,
			Timestamp:      ts,
			ElectricalRisk: electrical,
			FloodRisk:      flood,
			HeatRisk:       heat,
			WindRisk:       windRisk,
			OverallRisk: round2(electrical*weightElectrical +
				flood*weightFlood +
				heat*weightHeat +
				windRisk*weightWind),
		})
	}
	return records, nil
}

// sampleAt reads the i-th sample, treating an absent array or a null sample
// as zero. Callers have already verified len(values) >= the time axis length.
func sampleAt(values []*float64, i int) float64 {
	if values == nil {
		return 0
	}
	if v := values[i]; v != nil {
		return *v
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
