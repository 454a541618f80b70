// Package collaborator holds the HTTP clients for the services the
// escalation engine depends on. Both collaborators are best-effort: a
// timeout or non-2xx response surfaces as an error, and callers decide
// whether to fail open.
package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

const defaultTimeout = 10 * time.Second

// IncidentClient queries the incident management service for incident status
type IncidentClient struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewIncidentClient creates an incident-service client. A zero timeout uses
// the default.
func NewIncidentClient(logger *zap.Logger, baseURL string, timeout time.Duration) *IncidentClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &IncidentClient{
		logger:  logger.Named("incident-client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Status returns the current status of an incident. Any transport failure,
// non-200 response, or unparseable body is an error; callers treat errors as
// unknown status and fail open.
func (c *IncidentClient) Status(ctx context.Context, incidentID string) (model.IncidentStatus, error) {
	url := fmt.Sprintf("%s/api/v1/incidents/%s", c.baseURL, incidentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.IncidentStatusUnknown, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.IncidentStatusUnknown, fmt.Errorf("incident status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.IncidentStatusUnknown, fmt.Errorf("incident service returned status %d", resp.StatusCode)
	}

	var body struct {
		Status model.IncidentStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.IncidentStatusUnknown, fmt.Errorf("failed to decode incident response: %w", err)
	}

	return body.Status, nil
}
