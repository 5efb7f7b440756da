package gardener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var actionPaths = map[string]string{
	ActionRemovePests: "/api/v1/pests/remove",
	ActionWaterAll:    "/api/v1/water-all",
	ActionPlant:       "/api/v1/plant/random",
}

// Actor executes decisions via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act POSTs the endpoint behind d.Action and returns the decoded JSON
// response. ActionNone does nothing and returns nil.
func (a *Actor) Act(ctx context.Context, d Decision) (map[string]any, error) {
	if d.Action == ActionNone {
		return nil, nil
	}
	path, ok := actionPaths[d.Action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s failed (%d): %s", d.Action, resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
