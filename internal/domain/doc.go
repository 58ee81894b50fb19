// Package domain models Open-Meteo forecast data and the per-department risk
// scores derived from it.
//
// # Data Source
//
// Forecasts come from the Open-Meteo forecast API
// (https://api.open-meteo.com/v1/forecast), queried once per department per
// collection pass with a one-day horizon and hourly resolution. Each response
// carries parallel arrays under "hourly": a local-time axis plus one array per
// requested variable (temperature_2m, precipitation, wind_gusts_10m,
// relative_humidity_2m). A "daily" block (temperature_2m_max,
// precipitation_sum) is requested alongside but not consumed by risk
// computation; it is kept in the decoded series so a future aggregate view can
// use it without a wire change.
//
// Timestamps on the hourly axis are ISO-8601 local hours without a zone
// suffix, e.g. "2026-09-01T14:00" (timezone=Europe/Paris is requested). They
// are carried through to persistence verbatim.
//
// # Missing values
//
// Open-Meteo encodes unavailable samples as JSON null. A null sample is
// scored as zero; this is the documented missing-data policy, not an error.
// An hourly block whose time axis is missing, or whose value arrays are
// shorter than the time axis, cannot be scored at all and is rejected with
// [ErrMalformedSeries] — a region never yields a partial series.
//
// # Risk scoring
//
// Four category scores per hourly sample, each clamped to [0,100]:
//
//	electrical = wind*0.2 + max(humidity-80, 0)*0.1
//	flood      = precipitation*2
//	heat       = max(temperature-30, 0)*2
//	wind       = wind*0.3
//
// The overall score is the weighted sum electrical*0.2 + flood*0.3 + heat*0.2
// + wind*0.3, rounded to two decimals. The weights sum to 1.0 and are fixed
// constants of the scoring model, not configuration.
package domain
