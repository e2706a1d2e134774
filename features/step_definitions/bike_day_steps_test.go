package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/adapters/primary/rest"
	"github.com/sean-rowe/best-bike-day/internal/app"
	"github.com/sean-rowe/best-bike-day/internal/config"
)

const stateTimeout = 5 * time.Second

type dailyPayload struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
	} `json:"temp"`
	WindSpeed float64 `json:"wind_speed"`
	Pop       float64 `json:"pop"`
}

type testContext struct {
	provider      *httptest.Server
	server        *httptest.Server
	app           *app.App
	forecastCalls atomic.Int32

	mu          sync.Mutex
	days        []dailyPayload
	failStatus  int
	lastStatus  int
	favorites   rest.FavoritesResponse
	searchCount int
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../best_bike_day.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &testContext{}

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.close()
		return ctx, nil
	})

	ctx.Step(`^the bike day service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^the provider forecasts these days:$`, tc.theProviderForecasts)
	ctx.Step(`^the provider is failing with status (\d+)$`, tc.theProviderIsFailing)
	ctx.Step(`^I select the location "([^"]*)" in "([^"]*)" at ([\-\d.]+), ([\-\d.]+)$`, tc.iSelectTheLocation)
	ctx.Step(`^I refresh the forecast$`, tc.iRefreshTheForecast)
	ctx.Step(`^the weather state becomes "([^"]*)"$`, tc.theWeatherStateBecomes)
	ctx.Step(`^the best day is "([^"]*)" with score (\d+)$`, tc.theBestDayIs)
	ctx.Step(`^the day "([^"]*)" scores (\d+)$`, tc.theDayScores)
	ctx.Step(`^the error message is "([^"]*)"$`, tc.theErrorMessageIs)
	ctx.Step(`^the provider was called (\d+) times?$`, tc.theProviderWasCalled)
	ctx.Step(`^I add the favorite "([^"]*)" in "([^"]*)" at ([\-\d.]+), ([\-\d.]+)$`, tc.iAddTheFavorite)
	ctx.Step(`^I have (\d+) favorites$`, tc.iHaveFavorites)
	ctx.Step(`^I search for "([^"]*)"$`, tc.iSearchFor)
	ctx.Step(`^I get (\d+) search results$`, tc.iGetSearchResults)
}

func (tc *testContext) theServiceIsRunning() error {
	tc.provider = httptest.NewServer(http.HandlerFunc(tc.serveProvider))

	cfg := config.Defaults()
	cfg.Storage.SnapshotPath = ""
	cfg.Observability.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.OpenWeather.BaseURL = tc.provider.URL
	cfg.OpenWeather.APIKey = "test-key"
	cfg.OpenWeather.RequestsPerSecond = 0

	tc.app = app.NewWithConfig(cfg, zap.NewNop())
	handler, err := tc.app.Build(context.Background())

	if err != nil {
		return err
	}

	tc.server = httptest.NewServer(handler)

	return nil
}

func (tc *testContext) serveProvider(w http.ResponseWriter, r *http.Request) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.failStatus != 0 {
		w.WriteHeader(tc.failStatus)
		return
	}

	switch r.URL.Path {
	case "/data/3.0/onecall":
		tc.forecastCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"daily": tc.days})
	case "/geo/1.0/direct":
		_, _ = w.Write([]byte(`[]`))
	default:
		http.NotFound(w, r)
	}
}

func (tc *testContext) theProviderForecasts(table *godog.Table) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for _, row := range table.Rows[1:] {
		date, err := time.Parse("2006-01-02", row.Cells[0].Value)

		if err != nil {
			return err
		}

		var day dailyPayload
		day.Dt = date.Add(12 * time.Hour).Unix()

		values := make([]float64, 3)

		for i := range values {
			if values[i], err = strconv.ParseFloat(row.Cells[i+1].Value, 64); err != nil {
				return err
			}
		}

		day.Temp.Day, day.Pop, day.WindSpeed = values[0], values[1], values[2]
		tc.days = append(tc.days, day)
	}

	return nil
}

func (tc *testContext) theProviderIsFailing(status int) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.failStatus = status

	return nil
}

func (tc *testContext) iSelectTheLocation(name, country, lat, lon string) error {
	body := fmt.Sprintf(`{"name":%q,"country":%q,"lat":%s,"lon":%s}`, name, country, lat, lon)

	return tc.send(http.MethodPost, "/api/v1/location", body, nil)
}

func (tc *testContext) iRefreshTheForecast() error {
	return tc.send(http.MethodPost, "/api/v1/refresh", "", nil)
}

func (tc *testContext) theWeatherStateBecomes(expected string) error {
	deadline := time.Now().Add(stateTimeout)

	for {
		var weather rest.WeatherResponse

		if err := tc.send(http.MethodGet, "/api/v1/weather", "", &weather); err != nil {
			return err
		}

		if string(weather.State) == expected {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("expected state %s, still %s", expected, weather.State)
		}

		time.Sleep(20 * time.Millisecond)
	}
}

func (tc *testContext) theBestDayIs(date string, score int) error {
	var ranked rest.RecommendationsResponse

	if err := tc.send(http.MethodGet, "/api/v1/recommendations?sort=score", "", &ranked); err != nil {
		return err
	}

	if len(ranked.Recommendations) == 0 {
		return fmt.Errorf("no recommendations")
	}

	best := ranked.Recommendations[0]

	if got := best.Date.Format("2006-01-02"); got != date || best.Score != score {
		return fmt.Errorf("expected best day %s with %d, got %s with %d", date, score, got, best.Score)
	}

	return nil
}

func (tc *testContext) theDayScores(date string, score int) error {
	var recommendations rest.RecommendationsResponse

	if err := tc.send(http.MethodGet, "/api/v1/recommendations", "", &recommendations); err != nil {
		return err
	}

	for _, r := range recommendations.Recommendations {
		if r.Date.Format("2006-01-02") == date {
			if r.Score != score {
				return fmt.Errorf("expected %s to score %d, got %d", date, score, r.Score)
			}

			return nil
		}
	}

	return fmt.Errorf("no recommendation for %s", date)
}

func (tc *testContext) theErrorMessageIs(expected string) error {
	var weather rest.WeatherResponse

	if err := tc.send(http.MethodGet, "/api/v1/weather", "", &weather); err != nil {
		return err
	}

	if weather.Message != expected {
		return fmt.Errorf("expected message %q, got %q", expected, weather.Message)
	}

	return nil
}

func (tc *testContext) theProviderWasCalled(expected int) error {
	if got := int(tc.forecastCalls.Load()); got != expected {
		return fmt.Errorf("expected %d provider calls, got %d", expected, got)
	}

	return nil
}

func (tc *testContext) iAddTheFavorite(name, country, lat, lon string) error {
	body := fmt.Sprintf(`{"name":%q,"country":%q,"lat":%s,"lon":%s}`, name, country, lat, lon)

	return tc.send(http.MethodPost, "/api/v1/favorites", body, &tc.favorites)
}

func (tc *testContext) iHaveFavorites(expected int) error {
	if got := len(tc.favorites.Favorites); got != expected {
		return fmt.Errorf("expected %d favorites, got %d", expected, got)
	}

	return nil
}

func (tc *testContext) iSearchFor(query string) error {
	var results rest.SearchResponse

	if err := tc.send(http.MethodGet, "/api/v1/locations/search?q="+query, "", &results); err != nil {
		return err
	}

	tc.searchCount = len(results.Results)

	return nil
}

func (tc *testContext) iGetSearchResults(expected int) error {
	if tc.searchCount != expected {
		return fmt.Errorf("expected %d search results, got %d", expected, tc.searchCount)
	}

	return nil
}

// send performs a request against the service and decodes a JSON body into out.
func (tc *testContext) send(method, path, body string, out interface{}) error {
	req, err := http.NewRequest(method, tc.server.URL+path, strings.NewReader(body))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := tc.server.Client().Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (tc *testContext) close() {
	if tc.server != nil {
		tc.server.Close()
	}

	if tc.app != nil {
		tc.app.Stop()
	}

	if tc.provider != nil {
		tc.provider.Close()
	}
}
