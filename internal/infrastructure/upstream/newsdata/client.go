package newsdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
	"pulseboard/internal/infrastructure/upstream"
)

const (
	source         = "newsdata"
	DefaultBaseURL = "https://newsdata.io"
)

// Client NewsData REST 客户端
type Client struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
}

var _ port.NewsSource = (*Client)(nil)

func NewClient(baseURL, apiKey, language string, hc *http.Client) (*Client, error) {
	if err := upstream.RequireKey(source, apiKey); err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if language == "" {
		language = "en"
	}
	if hc == nil {
		hc = upstream.NewHTTPClient(0)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, language: language, client: hc}, nil
}

type newsResp struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Results      []struct {
		ArticleID   string `json:"article_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		ImageURL    string `json:"image_url"`
		SourceName  string `json:"source_name"`
		PubDate     string `json:"pubDate"`
	} `json:"results"`
}

func (c *Client) Latest(ctx context.Context, query string) ([]model.Article, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("q", query)
	q.Set("language", c.language)

	var r newsResp
	if err := upstream.GetJSON(ctx, c.client, source, c.baseURL+"/api/1/news?"+q.Encode(), nil, &r); err != nil {
		return nil, err
	}
	if r.Results == nil {
		return nil, fmt.Errorf("%s: results missing: %w", source, port.ErrBadPayload)
	}

	out := make([]model.Article, 0, len(r.Results))
	for _, a := range r.Results {
		out = append(out, model.Article{
			ID:          a.ArticleID,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.Link,
			ImageURL:    a.ImageURL,
			SourceName:  a.SourceName,
			Date:        a.PubDate,
		})
	}
	return out, nil
}
