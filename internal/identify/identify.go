// Package identify names a plant from a photo using the Pl@ntNet API.
package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://my-api.plantnet.org"

var (
	ErrNoMatch       = errors.New("no plant identified")
	ErrNotConfigured = errors.New("plant identification is not configured")
)

// Guess is the top identification result.
type Guess struct {
	ScientificName string   `json:"scientificName"`
	CommonNames    []string `json:"commonNames"`
	Score          float64  `json:"score"`
	GbifURL        string   `json:"gbifUrl,omitempty"`
}

// CommonName is the first common name, or "".
func (g *Guess) CommonName() string {
	if len(g.CommonNames) == 0 {
		return ""
	}
	return g.CommonNames[0]
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type identifyResponse struct {
	Results []struct {
		Score   float64 `json:"score"`
		Species struct {
			ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
			CommonNames                 []string `json:"commonNames"`
		} `json:"species"`
		Gbif *struct {
			ID json.RawMessage `json:"id"`
		} `json:"gbif"`
	} `json:"results"`
}

// Identify uploads one leaf photo and returns the best match. An empty
// contentType is sent as image/jpeg.
func (c *Client) Identify(ctx context.Context, image io.Reader, filename, contentType string) (*Guess, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if filename == "" {
		filename = "plant.jpg"
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("organs", "leaf"); err != nil {
		return nil, fmt.Errorf("write organs field: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	endpoint := c.baseURL + "/v2/identify/all?api-key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identify request: %w", err)
	}
	defer resp.Body.Close()

	// Pl@ntNet answers 404 when nothing matched.
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identify API returned status %d", resp.StatusCode)
	}

	var data identifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode identify response: %w", err)
	}
	if len(data.Results) == 0 {
		return nil, ErrNoMatch
	}

	top := data.Results[0]
	guess := &Guess{
		ScientificName: top.Species.ScientificNameWithoutAuthor,
		CommonNames:    top.Species.CommonNames,
		Score:          top.Score,
	}
	if guess.CommonNames == nil {
		guess.CommonNames = []string{}
	}
	if top.Gbif != nil {
		if id := strings.Trim(string(top.Gbif.ID), `" `); id != "" && id != "null" {
			guess.GbifURL = "https://www.gbif.org/species/" + id
		}
	}
	return guess, nil
}
