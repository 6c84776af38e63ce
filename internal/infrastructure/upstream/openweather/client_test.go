package openweather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulseboard/internal/application/port"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/data/2.5/weather":
			if r.URL.Query().Get("units") != "metric" {
				t.Errorf("units = %q", r.URL.Query().Get("units"))
			}
			if r.URL.Query().Get("q") == "Nowhere" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":1850147,"name":"Tokyo","dt":1714557600,
				"coord":{"lat":35.69,"lon":139.69},
				"main":{"temp":18.5,"humidity":60,"pressure":1012},
				"wind":{"speed":3.1},
				"weather":[{"main":"Clouds","description":"broken clouds"}],
				"sys":{"country":"JP"}}`))
		case "/geo/1.0/reverse":
			_, _ = w.Write([]byte(`[{"name":"Tokyo","state":"Tokyo","country":"JP","lat":35.69,"lon":139.69}]`))
		case "/geo/1.0/direct":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			_, _ = w.Write([]byte(`[{"name":"Paris","country":"FR"},{"name":"Paris","state":"Texas","country":"US"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestCurrentAndReverse(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, err := NewClient(srv.URL, "k", srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	obs, err := c.Current(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if obs.City.ID != "1850147" || obs.City.Conditions != "Clouds" || obs.City.Temperature != 18.5 {
		t.Fatalf("unexpected %+v", obs.City)
	}
	if obs.Lat != 35.69 || obs.Lon != 139.69 {
		t.Fatalf("coords = %v,%v", obs.Lat, obs.Lon)
	}

	p, err := c.Reverse(context.Background(), obs.Lat, obs.Lon)
	if err != nil || p.State != "Tokyo" || p.Country != "JP" {
		t.Fatalf("Reverse = %+v, %v", p, err)
	}
}

func TestCurrentNotFoundIsNotTransient(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "k", srv.Client())
	_, err := c.Current(context.Background(), "Nowhere")
	var se *port.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
	if port.IsTransient(err) {
		t.Fatalf("404 must not be transient")
	}
}

func TestDirect(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "k", srv.Client())
	places, err := c.Direct(context.Background(), "Paris", 5)
	if err != nil || len(places) != 2 || places[1].State != "Texas" {
		t.Fatalf("Direct = %+v, %v", places, err)
	}
}

func TestMissingKey(t *testing.T) {
	if _, err := NewClient("", "", nil); !errors.Is(err, port.ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
}
