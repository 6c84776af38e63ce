package openweather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
	"pulseboard/internal/infrastructure/upstream"
)

const (
	source         = "openweather"
	DefaultBaseURL = "https://api.openweathermap.org"
)

// Client OpenWeather REST 客户端（当前天气 + 地理编码）
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ port.WeatherSource = (*Client)(nil)

func NewClient(baseURL, apiKey string, hc *http.Client) (*Client, error) {
	if err := upstream.RequireKey(source, apiKey); err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = upstream.NewHTTPClient(0)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: hc}, nil
}

type currentResp struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Dt    int64  `json:"dt"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

type placeResp struct {
	Name    string  `json:"name"`
	State   string  `json:"state"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (c *Client) endpoint(path string, q url.Values) string {
	q.Set("appid", c.apiKey)
	return c.baseURL + path + "?" + q.Encode()
}

// Current 按城市名查询当前天气（公制单位）
func (c *Client) Current(ctx context.Context, city string) (port.Observation, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("units", "metric")

	var r currentResp
	if err := upstream.GetJSON(ctx, c.client, source, c.endpoint("/data/2.5/weather", q), nil, &r); err != nil {
		return port.Observation{}, err
	}
	if r.ID == 0 {
		return port.Observation{}, fmt.Errorf("%s: weather for %s without id: %w", source, city, port.ErrBadPayload)
	}

	conditions := ""
	if len(r.Weather) > 0 {
		conditions = r.Weather[0].Main
	}
	updated := time.Now()
	if r.Dt > 0 {
		updated = time.Unix(r.Dt, 0)
	}
	return port.Observation{
		City: model.City{
			ID:          strconv.FormatInt(r.ID, 10),
			Name:        r.Name,
			Country:     r.Sys.Country,
			Temperature: r.Main.Temp,
			Humidity:    r.Main.Humidity,
			Pressure:    r.Main.Pressure,
			WindSpeed:   r.Wind.Speed,
			Conditions:  conditions,
			LastUpdated: updated,
		},
		Lat: r.Coord.Lat,
		Lon: r.Coord.Lon,
	}, nil
}

// Reverse returns the first reverse-geocoding hit.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (model.Place, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("limit", "1")

	var rows []placeResp
	if err := upstream.GetJSON(ctx, c.client, source, c.endpoint("/geo/1.0/reverse", q), nil, &rows); err != nil {
		return model.Place{}, err
	}
	if len(rows) == 0 {
		return model.Place{}, fmt.Errorf("%s: no place at %v,%v", source, lat, lon)
	}
	return toPlace(rows[0]), nil
}

// Direct 城市名模糊搜索，用于输入提示
func (c *Client) Direct(ctx context.Context, query string, limit int) ([]model.Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var rows []placeResp
	if err := upstream.GetJSON(ctx, c.client, source, c.endpoint("/geo/1.0/direct", q), nil, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Place, 0, len(rows))
	for _, r := range rows {
		out = append(out, toPlace(r))
	}
	return out, nil
}

func toPlace(r placeResp) model.Place {
	return model.Place{Name: r.Name, State: r.State, Country: r.Country, Lat: r.Lat, Lon: r.Lon}
}
