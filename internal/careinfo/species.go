package careinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/plantcare/internal/model"
)

var (
	ErrUnknownSpecies  = errors.New("species not found")
	ErrUnknownWatering = errors.New("unknown watering category")
)

// wateringDays maps the service's watering categories to an interval.
var wateringDays = map[string]int{
	"low":      14,
	"moderate": 7,
	"normal":   7,
	"high":     3,
}

// SpeciesClient looks up care data for a species on a remote service.
type SpeciesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSpeciesClient(baseURL, apiKey string) *SpeciesClient {
	return &SpeciesClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type speciesResponse struct {
	Name       string `json:"name"`
	CommonName string `json:"commonName"`
	Watering   string `json:"watering"`
	Sunlight   string `json:"sunlight"`
}

func (c *SpeciesClient) Lookup(ctx context.Context, species string) (*model.PlantCareInfo, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse care data url: %w", err)
	}
	q := u.Query()
	q.Set("q", species)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch care data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnknownSpecies
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("care data API returned status %d", resp.StatusCode)
	}

	var data speciesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode care data: %w", err)
	}

	days, ok := wateringDays[strings.ToLower(strings.TrimSpace(data.Watering))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWatering, data.Watering)
	}

	name := data.Name
	if name == "" {
		name = species
	}
	return &model.PlantCareInfo{
		Name:         name,
		CommonName:   data.CommonName,
		WateringDays: days,
		Sunlight:     data.Sunlight,
	}, nil
}
