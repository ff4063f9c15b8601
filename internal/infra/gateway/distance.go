package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lotpool/internal/pkg/errs"
	"lotpool/internal/usecase/commands"
)

// DistanceClient resolves the road distance between two addresses. Callers
// treat failures as soft and fall back to their own estimates, so there is no
// retry loop here; one quick attempt per lookup.
type DistanceClient struct {
	baseURL string
	http    *http.Client
}

func NewDistanceClient(baseURL string, timeout time.Duration) *DistanceClient {
	return &DistanceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type distanceResponse struct {
	DistanceKm float64 `json:"distance_km"`
}

func (c *DistanceClient) DistanceKm(ctx context.Context, from, to commands.Address) (float64, error) {
	q := url.Values{}
	q.Set("from_postal", from.PostalCode)
	q.Set("from_street", from.StreetAddress)
	q.Set("to_postal", to.PostalCode)
	q.Set("to_street", to.StreetAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/distance?"+q.Encode(), nil)
	if err != nil {
		return 0, errs.Wrap(err, "failed to build distance request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errs.Wrap(err, "distance lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("distance service returned %d", resp.StatusCode)
	}

	var out distanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, errs.Wrap(err, "failed to decode distance response")
	}
	if out.DistanceKm < 0 {
		return 0, errs.New("distance service returned a negative distance")
	}
	return out.DistanceKm, nil
}
