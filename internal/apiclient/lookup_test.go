package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-session/internal/models"
)

func TestClassifyCurrent(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantKind   LookupKind
		wantStatus models.SubscriptionStatus
	}{
		{name: "null body", statusCode: http.StatusOK, body: "null", wantKind: LookupNotFound},
		{name: "empty body", statusCode: http.StatusOK, body: "", wantKind: LookupNotFound},
		{name: "whitespace body", statusCode: http.StatusOK, body: " \n\t", wantKind: LookupNotFound},
		{name: "empty json string", statusCode: http.StatusOK, body: `""`, wantKind: LookupNotFound},
		{name: "empty object", statusCode: http.StatusOK, body: "{}", wantKind: LookupNotFound},
		{name: "sentinel json string", statusCode: http.StatusOK, body: `"No active subscription found"`, wantKind: LookupNotFound},
		{name: "sentinel plain text", statusCode: http.StatusOK, body: "No active subscription", wantKind: LookupNotFound},
		{name: "sentinel in message", statusCode: http.StatusOK, body: `{"message":"User has no active subscription"}`, wantKind: LookupNotFound},
		{name: "sentinel beside status", statusCode: http.StatusOK, body: `{"status":"ACTIVE","message":"No active subscription"}`, wantKind: LookupNotFound},
		{name: "object without status", statusCode: http.StatusOK, body: `{"planName":"Pro"}`, wantKind: LookupNotFound},
		{name: "bare string", statusCode: http.StatusOK, body: `"ACTIVE"`, wantKind: LookupNotFound},
		{name: "bare true", statusCode: http.StatusOK, body: "true", wantKind: LookupNotFound},
		{name: "array", statusCode: http.StatusOK, body: `[{"status":"ACTIVE"}]`, wantKind: LookupNotFound},
		{name: "not found", statusCode: http.StatusNotFound, body: `{"error":"not found"}`, wantKind: LookupNotFound},
		{name: "bad request", statusCode: http.StatusBadRequest, body: "", wantKind: LookupNotFound},
		{name: "unauthorized", statusCode: http.StatusUnauthorized, body: "", wantKind: LookupNotFound},
		{name: "server error", statusCode: http.StatusInternalServerError, body: `{"error":"boom"}`, wantKind: LookupFailed},
		{name: "bad gateway", statusCode: http.StatusBadGateway, body: "<html>", wantKind: LookupFailed},
		{name: "garbage 200", statusCode: http.StatusOK, body: "{broken", wantKind: LookupFailed},
		{name: "active", statusCode: http.StatusOK, body: `{"status":"ACTIVE"}`, wantKind: LookupFound, wantStatus: models.StatusActive},
		{name: "active lowercase", statusCode: http.StatusOK, body: `{"status":"active"}`, wantKind: LookupFound, wantStatus: models.StatusActive},
		{name: "canceled", statusCode: http.StatusOK, body: `{"status":"CANCELED","planName":"Pro"}`, wantKind: LookupFound, wantStatus: models.StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyCurrent(tt.statusCode, []byte(tt.body))

			assert.Equal(t, tt.wantKind, got.Kind)
			switch tt.wantKind {
			case LookupFound:
				require.NotNil(t, got.Snapshot)
				assert.Equal(t, tt.wantStatus, got.Snapshot.Status)
				assert.NoError(t, got.Err)
			case LookupFailed:
				assert.Nil(t, got.Snapshot)
				assert.Error(t, got.Err)
			default:
				assert.Nil(t, got.Snapshot)
				assert.NoError(t, got.Err)
			}
		})
	}
}

func TestClassifyCurrent_ServerErrorCarriesStatus(t *testing.T) {
	got := classifyCurrent(http.StatusServiceUnavailable, []byte(`{"status":"Error","error":"maintenance"}`))

	require.Equal(t, LookupFailed, got.Kind)
	var statusErr *StatusError
	require.ErrorAs(t, got.Err, &statusErr)
	assert.True(t, statusErr.Server())
	assert.Equal(t, "maintenance", statusErr.Message)
}

func TestClassifyCurrent_FullSnapshot(t *testing.T) {
	body := `{"status":"ACTIVE","planName":"Pro","currentPeriodStart":"2024-12-01","currentPeriodEnd":"2025-01-01"}`

	got := classifyCurrent(http.StatusOK, []byte(body))

	require.Equal(t, LookupFound, got.Kind)
	require.NotNil(t, got.Snapshot.PlanName)
	assert.Equal(t, "Pro", *got.Snapshot.PlanName)
	assert.Equal(t, "2024-12-01", *got.Snapshot.CurrentPeriodStart)
	assert.Equal(t, "2025-01-01", *got.Snapshot.CurrentPeriodEnd)
}

func TestClassifyCurrent_EpochPeriods(t *testing.T) {
	body := `{"status":"ACTIVE","currentPeriodEnd":1735689600000,"planName":null}`

	got := classifyCurrent(http.StatusOK, []byte(body))

	require.Equal(t, LookupFound, got.Kind)
	assert.Nil(t, got.Snapshot.PlanName)
	assert.Nil(t, got.Snapshot.CurrentPeriodStart)
	require.NotNil(t, got.Snapshot.CurrentPeriodEnd)
	assert.Equal(t, "1735689600000", *got.Snapshot.CurrentPeriodEnd)
}

func TestParseActiveFlag(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr bool
	}{
		{name: "true", body: "true", want: true},
		{name: "false", body: "false", want: false},
		{name: "object active", body: `{"active":true}`, want: true},
		{name: "object has active", body: `{"hasActiveSubscription":true}`, want: true},
		{name: "object inactive", body: `{"active":false}`, want: false},
		{name: "empty object", body: "{}", wantErr: true},
		{name: "null", body: "null", wantErr: true},
		{name: "string true", body: `"true"`, wantErr: true},
		{name: "garbage", body: "yes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseActiveFlag([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
