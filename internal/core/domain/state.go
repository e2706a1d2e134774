package domain

// StateKind names the variant of a WeatherState.
type StateKind string

const (
	// StateLoading is the initial state and the state while a fetch cycle runs
	StateLoading StateKind = "loading"

	// StateSuccess carries the scored forecast of the latest cycle
	StateSuccess StateKind = "success"

	// StateError carries a user-facing failure description
	StateError StateKind = "error"
)

// WeatherState is the value published by the forecast controller.
// Exactly one of Forecasts (success) or Message (error) is meaningful, selected by Kind.
type WeatherState struct {
	Kind      StateKind        `json:"state"`
	Forecasts []ScoredForecast `json:"forecasts,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Loading returns the loading state.
func Loading() WeatherState {
	return WeatherState{Kind: StateLoading}
}

// Success returns a success state holding forecasts.
func Success(forecasts []ScoredForecast) WeatherState {
	if forecasts == nil {
		forecasts = []ScoredForecast{}
	}

	return WeatherState{Kind: StateSuccess, Forecasts: forecasts}
}

// Failure returns an error state with a user-facing message.
func Failure(message string) WeatherState {
	return WeatherState{Kind: StateError, Message: message}
}

// IsLoading reports whether the state is Loading.
func (s WeatherState) IsLoading() bool { return s.Kind == StateLoading }

// IsSuccess reports whether the state is Success.
func (s WeatherState) IsSuccess() bool { return s.Kind == StateSuccess }

// IsError reports whether the state is Error.
func (s WeatherState) IsError() bool { return s.Kind == StateError }
