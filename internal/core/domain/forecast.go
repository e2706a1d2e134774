package domain

import "time"

// DailyObservation is one day of raw forecast data as delivered by the weather provider.
type DailyObservation struct {
	EpochSeconds             int64   `json:"dt"`
	TempDayC                 float64 `json:"temp_day_c"`
	TempMinC                 float64 `json:"temp_min_c"`
	TempMaxC                 float64 `json:"temp_max_c"`
	HumidityPct              int     `json:"humidity_pct"`
	WindSpeedMps             float64 `json:"wind_speed_mps"`
	PrecipitationProbability float64 `json:"pop"`
	WeatherID                int     `json:"weather_id,omitempty"`
	WeatherMain              string  `json:"weather_main,omitempty"`
	WeatherDescription       string  `json:"weather_description"`
	WeatherIcon              string  `json:"weather_icon"`
}

// Date returns the observation time in UTC.
func (o DailyObservation) Date() time.Time {
	return time.Unix(o.EpochSeconds, 0).UTC()
}

// ScoredForecast is a DailyObservation with its ride-quality score attached.
// Only the scoring package creates these.
type ScoredForecast struct {
	DailyObservation

	// Score is the ride-quality score in [0,100]
	Score int `json:"score"`
}

// BikeRideRecommendation is the display projection of a ScoredForecast.
type BikeRideRecommendation struct {
	Date         time.Time `json:"date"`
	TemperatureC float64   `json:"temperatureC"`
	RainChance   float64   `json:"rainChance"`
	WindSpeedMps float64   `json:"windSpeedMps"`
	Score        int       `json:"score"`
}

// CacheEntry is the single cached forecast slot.
type CacheEntry struct {
	// Forecasts holds the scored days in provider order
	Forecasts []ScoredForecast `json:"forecasts"`

	// FetchedAtEpochMillis stamps when the forecasts were written
	FetchedAtEpochMillis int64 `json:"fetched_at_epoch_millis"`

	// LocationKey is the IdentityKey of the location the forecasts belong to
	LocationKey string `json:"location_key,omitempty"`
}

// FetchedAt returns the write stamp as a time.
func (e CacheEntry) FetchedAt() time.Time {
	return time.UnixMilli(e.FetchedAtEpochMillis)
}
