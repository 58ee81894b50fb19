package domain

// ForecastSeries is the decoded Open-Meteo response for one region. Hourly
// value arrays run parallel to the time axis; pointer elements preserve JSON
// nulls so scoring can apply the missing-value-as-zero policy per sample.
type ForecastSeries struct {
	Hourly HourlySeries `json:"hourly"`
	Daily  DailySeries  `json:"daily"`
}

// HourlySeries holds the hourly time axis and the four scored variables.
type HourlySeries struct {
	Time             []string   `json:"time"`
	Temperature      []*float64 `json:"temperature_2m"`       // °C
	Precipitation    []*float64 `json:"precipitation"`        // mm
	WindGusts        []*float64 `json:"wind_gusts_10m"`       // km/h
	RelativeHumidity []*float64 `json:"relative_humidity_2m"` // %
}

// DailySeries is requested with every forecast but not read by risk
// computation. Retained for forward compatibility with daily aggregates.
type DailySeries struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
}
