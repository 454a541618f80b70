package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NotificationClient sends escalation messages through the notification
// service.
type NotificationClient struct {
	logger     *zap.Logger
	baseURL    string
	channel    string
	httpClient *http.Client
}

// NewNotificationClient creates a notification-service client
func NewNotificationClient(logger *zap.Logger, baseURL, channel string, timeout time.Duration) *NotificationClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if channel == "" {
		channel = "email"
	}
	return &NotificationClient{
		logger:  logger.Named("notification-client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		channel: channel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type notifyRequest struct {
	IncidentID string `json:"incident_id"`
	Engineer   string `json:"engineer"`
	Channel    string `json:"channel"`
	Message    string `json:"message"`
}

// Notify delivers an escalation message to an engineer. Non-2xx responses
// and transport failures are errors; escalation outcomes never depend on
// delivery succeeding.
func (c *NotificationClient) Notify(ctx context.Context, incidentID, engineer, message string) error {
	payload, err := json.Marshal(notifyRequest{
		IncidentID: incidentID,
		Engineer:   engineer,
		Channel:    c.channel,
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := c.baseURL + "/api/v1/notify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Notification sent",
		zap.String("incident_id", incidentID),
		zap.String("engineer", engineer))
	return nil
}
