package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/driver-agent/internal/auth"
	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.APIConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, auth.NewTokenSource("test-token"))
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func TestProfile(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/user-details", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, Profile{
			ID:                "driver-1",
			Name:              "Merdan",
			VehicleNumber:     "AG 1234",
			Active:            true,
			DocumentsUploaded: true,
			DocumentsVerified: true,
		})
	}))

	profile, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "driver-1", profile.ID)
	assert.True(t, profile.DocumentsVerified)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestProfileUnreachable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	_, err := c.Profile(context.Background())
	require.Error(t, err)
}

func TestToggleWorkStatus(t *testing.T) {
	var gotBody WorkStatusRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/toggle-work-status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(w, nil)
	}))

	require.NoError(t, c.ToggleWorkStatus(context.Background(), true))
	assert.True(t, gotBody.Active)
}

func TestCancelReasonsCachesLastGoodList(t *testing.T) {
	var fail atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadRequest)
			return
		}
		writeEnvelope(w, []CancelReason{
			{Code: "rider_no_show", Label: "Rider did not show up"},
			{Code: "vehicle_issue", Label: "Vehicle problem"},
		})
	}))

	reasons, err := c.CancelReasons(context.Background())
	require.NoError(t, err)
	require.Len(t, reasons, 2)

	// The API goes down; the cached list is served instead
	fail.Store(true)
	reasons, err = c.CancelReasons(context.Background())
	require.NoError(t, err)
	require.Len(t, reasons, 2)
	assert.Equal(t, "rider_no_show", reasons[0].Code)
}

func TestCancelReasonsFailsWithoutCache(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadRequest)
	}))

	_, err := c.CancelReasons(context.Background())
	require.Error(t, err)
}

func TestValidReason(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []CancelReason{{Code: "rider_no_show", Label: "Rider did not show up"}})
	}))

	// Empty cache accepts any non-empty reason
	assert.True(t, c.ValidReason("anything"))
	assert.False(t, c.ValidReason(""))

	_, err := c.CancelReasons(context.Background())
	require.NoError(t, err)

	assert.True(t, c.ValidReason("rider_no_show"))
	assert.False(t, c.ValidReason("made_up"))
	assert.False(t, c.ValidReason(""))
}

func TestAcceptAndRejectRideMirrors(t *testing.T) {
	paths := make(chan string, 2)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		paths <- r.URL.Path
		writeEnvelope(w, nil)
	}))

	require.NoError(t, c.AcceptRide(context.Background(), "req-100", models.AcceptPayload{
		RiderID:       "driver-1",
		RideRequestID: "req-100",
	}))
	require.NoError(t, c.RejectRide(context.Background(), "req-200", models.RejectPayload{
		RideID:   "req-200",
		DriverID: "driver-1",
		Reason:   models.RejectReasonManual,
	}))

	assert.Equal(t, "/accept-ride/req-100", <-paths)
	assert.Equal(t, "/reject-ride/req-200", <-paths)
}
