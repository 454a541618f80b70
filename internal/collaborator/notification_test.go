package collaborator

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotificationClient_Notify(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewNotificationClient(logger, "http://notify.local", "slack", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	var got notifyRequest
	httpmock.RegisterResponder(http.MethodPost, "http://notify.local/api/v1/notify",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(400, "bad body"), nil
			}
			return httpmock.NewJsonResponse(200, map[string]string{"status": "sent"})
		})

	err := client.Notify(context.Background(), "INC-1", "alice@example.com", "[ESCALATED L1] Incident INC-1 escalated to you. Reason: test")
	require.NoError(t, err)
	require.Equal(t, "INC-1", got.IncidentID)
	require.Equal(t, "alice@example.com", got.Engineer)
	require.Equal(t, "slack", got.Channel)
	require.Contains(t, got.Message, "[ESCALATED L1]")
}

func TestNotificationClient_DefaultChannel(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewNotificationClient(logger, "http://notify.local", "", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	var got notifyRequest
	httpmock.RegisterResponder(http.MethodPost, "http://notify.local/api/v1/notify",
		func(req *http.Request) (*http.Response, error) {
			json.NewDecoder(req.Body).Decode(&got)
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	require.NoError(t, client.Notify(context.Background(), "INC-1", "alice@example.com", "hello"))
	require.Equal(t, "email", got.Channel)
}

func TestNotificationClient_ServerError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewNotificationClient(logger, "http://notify.local", "email", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://notify.local/api/v1/notify",
		httpmock.NewStringResponder(503, "unavailable"))

	err := client.Notify(context.Background(), "INC-1", "alice@example.com", "hello")
	require.Error(t, err)
}
