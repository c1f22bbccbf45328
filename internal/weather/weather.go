package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Conditions is the current weather at a point.
type Conditions struct {
	Temperature float64   `json:"temperature_c"`
	WindSpeed   float64   `json:"wind_speed_kmh"`
	Code        int       `json:"weather_code"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Summary formats conditions the way they are stored on reports,
// e.g. "Clear, 18.2°C, wind 9 km/h".
func (c Conditions) Summary() string {
	return fmt.Sprintf("%s, %.1f°C, wind %.0f km/h", c.Description, c.Temperature, c.WindSpeed)
}

// Client queries an Open-Meteo compatible forecast endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Current fetches current conditions at lat/lon.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var obj struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			WeatherCode int     `json:"weathercode"`
			Time        string  `json:"time"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if obj.CurrentWeather == nil {
		return nil, fmt.Errorf("no current weather in response")
	}

	cw := obj.CurrentWeather
	observed, _ := time.Parse("2006-01-02T15:04", cw.Time)
	return &Conditions{
		Temperature: cw.Temperature,
		WindSpeed:   cw.WindSpeed,
		Code:        cw.WeatherCode,
		Description: Describe(cw.WeatherCode),
		ObservedAt:  observed,
	}, nil
}

// Describe maps a WMO weather interpretation code to a short label.
func Describe(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "Rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
