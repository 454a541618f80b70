package collaborator

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

func TestIncidentClient_Status(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewIncidentClient(logger, "http://incidents.local", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://incidents.local/api/v1/incidents/INC-1",
		httpmock.NewJsonResponderOrPanic(200, map[string]string{
			"id":     "INC-1",
			"status": "acknowledged",
		}))

	status, err := client.Status(context.Background(), "INC-1")
	require.NoError(t, err)
	require.Equal(t, model.IncidentStatusAcknowledged, status)
	require.True(t, status.Handled())
}

func TestIncidentClient_StatusNotFound(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewIncidentClient(logger, "http://incidents.local", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://incidents.local/api/v1/incidents/INC-404",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))

	status, err := client.Status(context.Background(), "INC-404")
	require.Error(t, err)
	require.Equal(t, model.IncidentStatusUnknown, status)
}

func TestIncidentClient_StatusBadBody(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewIncidentClient(logger, "http://incidents.local", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://incidents.local/api/v1/incidents/INC-1",
		httpmock.NewStringResponder(200, "not json"))

	status, err := client.Status(context.Background(), "INC-1")
	require.Error(t, err)
	require.Equal(t, model.IncidentStatusUnknown, status)
}

func TestIncidentClient_TrimsTrailingSlash(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewIncidentClient(logger, "http://incidents.local/", 5*time.Second)

	httpmock.ActivateNonDefault(client.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://incidents.local/api/v1/incidents/INC-1",
		httpmock.NewJsonResponderOrPanic(200, map[string]string{"status": "open"}))

	status, err := client.Status(context.Background(), "INC-1")
	require.NoError(t, err)
	require.Equal(t, model.IncidentStatusOpen, status)
}
