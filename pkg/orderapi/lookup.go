package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
)

const lookupTimeout = 10 * time.Second

// serviceAPI is the aqm service client with single order lookups done over
// plain HTTP, so a missing order is told apart from a failing service.
type serviceAPI struct {
	*aqm.ServiceClient
	httpClient *http.Client
	baseURL    string
}

func newServiceAPI(baseURL string, client *aqm.ServiceClient) *serviceAPI {
	return &serviceAPI{
		ServiceClient: client,
		httpClient:    &http.Client{Timeout: lookupTimeout},
		baseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// Get returns ErrNotFound when the service answers 404.
func (a *serviceAPI) Get(ctx context.Context, resource, id string) (*aqm.SuccessResponse, error) {
	url := fmt.Sprintf("%s/%s/%s", a.baseURL, resource, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var wrapper struct {
		Data interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &aqm.SuccessResponse{Data: wrapper.Data}, nil
}
