package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// PostalAddress is one resolved address for a zip code.
type PostalAddress struct {
	ZipCode    string `json:"zipcode"`
	Prefecture string `json:"address1"`
	City       string `json:"address2"`
	Town       string `json:"address3"`
}

type postalAPIResponse struct {
	Status  int             `json:"status"`
	Message *string         `json:"message"`
	Results []PostalAddress `json:"results"`
}

// PostalService resolves Japanese postal codes to addresses through
// the public zipcloud lookup API. Results are immutable in practice,
// so successful lookups are cached for a day.
type PostalService struct {
	baseURL string
	client  *http.Client
	cache   *RedisCache
}

const postalCacheTTL = 24 * time.Hour

func NewPostalService(cache *RedisCache) *PostalService {
	url := os.Getenv("POSTAL_API_BASE_URL")
	if url == "" {
		url = "https://zipcloud.ibsnet.co.jp"
	}
	return &PostalService{
		baseURL: url,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
	}
}

// NormalizeZipCode strips separators and whitespace from a user-typed
// zip code. Returns an error unless exactly 7 digits remain.
func NormalizeZipCode(zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	zip = strings.ReplaceAll(zip, "-", "")
	zip = strings.ReplaceAll(zip, "〒", "")
	zip = strings.ReplaceAll(zip, " ", "")

	if len(zip) != 7 {
		return "", fmt.Errorf("zip code must be 7 digits, got %q", zip)
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("zip code must be numeric, got %q", zip)
		}
	}
	return zip, nil
}

// Lookup resolves a zip code to its addresses. Most codes map to one
// address; a few map to several.
func (s *PostalService) Lookup(ctx context.Context, zip string) ([]PostalAddress, error) {
	normalized, err := NormalizeZipCode(zip)
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.fetch(ctx, normalized)
	}

	key := "postal:" + normalized
	return GetOrSet(s.cache, ctx, key, postalCacheTTL, func() ([]PostalAddress, error) {
		return s.fetch(ctx, normalized)
	})
}

func (s *PostalService) fetch(ctx context.Context, zip string) ([]PostalAddress, error) {
	url := fmt.Sprintf("%s/api/search?zipcode=%s", s.baseURL, zip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("postal lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed postalAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Status != http.StatusOK {
		msg := "unknown error"
		if parsed.Message != nil {
			msg = *parsed.Message
		}
		return nil, fmt.Errorf("postal lookup rejected: %s", msg)
	}

	for i := range parsed.Results {
		parsed.Results[i].ZipCode = zip
	}
	return parsed.Results, nil
}
