package weather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/tool"
)

const (
	GetWeather = "get_weather"

	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
)

// Tool reports current weather from OpenWeatherMap
type Tool struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ tool.Tool = (*Tool)(nil)

type Option func(*Tool)

// WithBaseURL replaces the OpenWeatherMap endpoint
func WithBaseURL(u string) Option {
	return func(t *Tool) { t.baseURL = u }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.httpClient = c }
}

// New creates the weather tool
func New(apiKey string, opts ...Option) *Tool {
	t := &Tool{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Report is the weather summary given to the model
type Report struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
}

type apiResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (t *Tool) Specs() []*tool.Spec {
	return []*tool.Spec{
		{
			Name:        GetWeather,
			Description: "Mendapatkan informasi cuaca terkini di sebuah kota dari OpenWeatherMap",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"city": tool.String("Nama kota, misalnya Palembang", 1),
			}, "city"),
		},
	}
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	if name != GetWeather {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown weather function", goerr.V("name", name))
	}

	var input struct {
		City string `json:"city"`
	}
	if err := tool.Decode(args, &input); err != nil {
		return nil, err
	}

	return t.query(ctx, input.City)
}

func (t *Tool) query(ctx context.Context, city string) (*Report, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", t.apiKey)
	params.Set("units", "metric")
	params.Set("lang", "id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get weather data", goerr.V("city", city))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, goerr.New("failed to get weather data",
			goerr.V("city", city),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, goerr.Wrap(err, "failed to decode weather response")
	}

	report := &Report{
		Temperature: data.Main.Temp,
		Humidity:    data.Main.Humidity,
		WindSpeed:   data.Wind.Speed,
	}
	if len(data.Weather) > 0 {
		report.Description = data.Weather[0].Description
	}
	return report, nil
}
