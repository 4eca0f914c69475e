package ecobee

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService wires a Service to a fake API serving two thermostats and
// recording every request.
func newTestService(t *testing.T, throttle time.Duration) (*Service, *int64, *capturedBody) {
	t.Helper()

	var fetches int64
	var lastPost capturedBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt64(&fetches, 1)
			_ = json.NewEncoder(w).Encode(thermostatsResponse{
				ThermostatList: []Thermostat{
					{Identifier: "100", Name: "Main Floor"},
					{Identifier: "200", Name: "Upstairs"},
				},
			})
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPost))
		okStatus(w)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("tok", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return NewService(c, throttle, nil), &fetches, &lastPost
}

func TestUpdateThrottles(t *testing.T) {
	svc, fetches, _ := newTestService(t, time.Hour)

	require.NoError(t, svc.Update(t.Context(), false))
	require.NoError(t, svc.Update(t.Context(), false))
	require.NoError(t, svc.Update(t.Context(), false))

	assert.Equal(t, int64(1), atomic.LoadInt64(fetches), "updates inside the window must not fetch")
	assert.Equal(t, 2, svc.ThermostatCount())
}

func TestUpdateForceBypassesThrottle(t *testing.T) {
	svc, fetches, _ := newTestService(t, time.Hour)

	require.NoError(t, svc.Update(t.Context(), false))
	require.NoError(t, svc.Update(t.Context(), true))

	assert.Equal(t, int64(2), atomic.LoadInt64(fetches))
}

func TestThermostatAt(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	require.NoError(t, svc.Update(t.Context(), false))

	doc, err := svc.ThermostatAt(1)
	require.NoError(t, err)
	assert.Equal(t, "Upstairs", doc.Name)

	_, err = svc.ThermostatAt(2)
	assert.ErrorIs(t, err, ErrUnknownThermostat)
	_, err = svc.ThermostatAt(-1)
	assert.ErrorIs(t, err, ErrUnknownThermostat)
}

func TestCommandsResolveIdentifierByIndex(t *testing.T) {
	svc, _, lastPost := newTestService(t, time.Hour)
	require.NoError(t, svc.Update(t.Context(), false))

	require.NoError(t, svc.SetHvacMode(t.Context(), 1, "heat"))
	assert.Equal(t, "200", lastPost.Selection.SelectionMatch)

	require.NoError(t, svc.SetClimateHold(t.Context(), 0, "away", "nextTransition"))
	assert.Equal(t, "100", lastPost.Selection.SelectionMatch)

	require.NoError(t, svc.SetHoldTemp(t.Context(), 0, 900, 700, "nextTransition"))
	require.Len(t, lastPost.Functions, 1)
	assert.Equal(t, "setHold", lastPost.Functions[0].Type)

	require.NoError(t, svc.SetFanMinOnTime(t.Context(), 0, "20"))
	assert.Equal(t, "20", lastPost.Thermostat.Settings["fanMinOnTime"])

	require.NoError(t, svc.ResumeProgram(t.Context(), 1, true))
	assert.Equal(t, "true", lastPost.Functions[0].Params["resumeAll"])
}

func TestCommandsRejectUnknownIndex(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	require.NoError(t, svc.Update(t.Context(), false))

	assert.ErrorIs(t, svc.SetHvacMode(t.Context(), 5, "heat"), ErrUnknownThermostat)
	assert.ErrorIs(t, svc.ResumeProgram(t.Context(), 5, false), ErrUnknownThermostat)
}

func TestNewServiceDefaultThrottle(t *testing.T) {
	svc := NewService(nil, 0, nil)
	assert.Equal(t, DefaultThrottle, svc.throttle)
}
