// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Integration test for the RSVP admission and waitlist flow
//
// Drives the full HTTP stack (router, handlers, service, engine, store)
// over an in-memory store. No external services are required, so these
// tests run unconditionally.

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGather/pkg/extensions"
	"github.com/AleutianAI/AleutianGather/services/rsvp"
	"github.com/AleutianAI/AleutianGather/services/rsvp/store"
)

// newRSVPServer assembles the service exactly the way cmd/rsvp does, minus
// telemetry and rate limiting, and serves it over a loopback listener.
func newRSVPServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := rsvp.DefaultServiceConfig()
	cfg.Version = "integration"
	cfg.Store = store.InMemoryConfig()
	cfg.MaxDependents = 2
	cfg.Tiers = map[string]string{"vip-eve": "vip"}

	svc, err := rsvp.NewService(cfg, extensions.DefaultOptions())
	require.NoError(t, err, "service should start over an in-memory store")
	t.Cleanup(func() { svc.Close() })

	handlers := rsvp.NewHandlers(svc)
	router := gin.New()
	v1 := router.Group("/v1")
	rsvp.RegisterRoutes(v1, handlers)
	rsvp.RegisterOpsRoutes(router, handlers, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// call sends one JSON request and decodes the response body into out when
// out is non-nil. Returns the HTTP status code.
func call(t *testing.T, srv *httptest.Server, method, path string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out),
			"%s %s should return decodable JSON", method, path)
	}
	return resp.StatusCode
}

func setStatus(t *testing.T, srv *httptest.Server, eventID string, req rsvp.StatusRequest) rsvp.StatusResponse {
	t.Helper()
	var resp rsvp.StatusResponse
	code := call(t, srv, "PUT", "/v1/events/"+eventID+"/rsvp", req, &resp)
	require.Equal(t, http.StatusOK, code, "rsvp for %s should settle", req.UserID)
	return resp
}

func snapshot(t *testing.T, srv *httptest.Server, eventID string) rsvp.WaitlistResponse {
	t.Helper()
	var resp rsvp.WaitlistResponse
	code := call(t, srv, "GET", "/v1/events/"+eventID+"/waitlist", nil, &resp)
	require.Equal(t, http.StatusOK, code)
	return resp
}

func position(t *testing.T, srv *httptest.Server, eventID, userID string) *int {
	t.Helper()
	var resp rsvp.PositionResponse
	code := call(t, srv, "GET", "/v1/events/"+eventID+"/waitlist/position?userId="+userID, nil, &resp)
	require.Equal(t, http.StatusOK, code)
	return resp.Position
}

func getAttendee(t *testing.T, srv *httptest.Server, eventID, attendeeID string) rsvp.AttendeeResponse {
	t.Helper()
	var resp rsvp.AttendeeResponse
	code := call(t, srv, "GET", "/v1/events/"+eventID+"/attendees/"+attendeeID, nil, &resp)
	require.Equal(t, http.StatusOK, code, "attendee %s should exist", attendeeID)
	return resp
}

// TestRSVPLifecycle walks one event from configuration through admission,
// waitlisting, priority placement, promotion, repair, and purge. The phases
// share server state and run in order.
func TestRSVPLifecycle(t *testing.T) {
	srv := newRSVPServer(t)
	const event = "evt-gala"

	// Attendee IDs collected along the way; later phases address rows
	// directly with them.
	var aliceID, carolID, eveID string

	t.Run("Ops_Probes_Answer", func(t *testing.T) {
		var health rsvp.HealthResponse
		code := call(t, srv, "GET", "/health", nil, &health)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "integration", health.Version)

		var ready rsvp.ReadyResponse
		code = call(t, srv, "GET", "/ready", nil, &ready)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, ready.Ready)
		assert.True(t, ready.StoreOK)
		assert.True(t, ready.CacheOK, "no cache configured means cache_ok")
	})

	t.Run("Configure_Capacity", func(t *testing.T) {
		var cfg rsvp.EventConfigResponse
		code := call(t, srv, "PUT", "/v1/events/"+event+"/config",
			rsvp.EventConfigRequest{Capacity: intPtr(2), WaitlistEnabled: true}, &cfg)
		require.Equal(t, http.StatusOK, code)

		assert.Equal(t, event, cfg.EventID)
		require.NotNil(t, cfg.Capacity)
		assert.Equal(t, 2, *cfg.Capacity)
		assert.True(t, cfg.WaitlistEnabled)
		assert.Equal(t, 0, cfg.GoingCount)
		assert.True(t, cfg.HasRoom)
	})

	t.Run("Admit_To_Capacity", func(t *testing.T) {
		alice := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "alice", Status: "going"})
		assert.Equal(t, "going", alice.Status)
		assert.True(t, alice.Created)
		assert.True(t, alice.Changed)
		require.NotEmpty(t, alice.AttendeeID)
		aliceID = alice.AttendeeID

		bob := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "bob", Status: "going"})
		assert.Equal(t, "going", bob.Status)

		var cfg rsvp.EventConfigResponse
		code := call(t, srv, "GET", "/v1/events/"+event+"/config", nil, &cfg)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, cfg.GoingCount)
		assert.False(t, cfg.HasRoom, "two admits should fill capacity 2")
	})

	t.Run("Overflow_Waitlists", func(t *testing.T) {
		carol := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "carol", Status: "going"})
		assert.Equal(t, "waitlisted", carol.Status, "a going request against a full event queues")
		require.NotNil(t, carol.WaitlistPosition)
		assert.Equal(t, 1, *carol.WaitlistPosition)
		carolID = carol.AttendeeID

		var join rsvp.JoinWaitlistResponse
		code := call(t, srv, "POST", "/v1/events/"+event+"/waitlist/join",
			rsvp.JoinWaitlistRequest{UserID: "dave"}, &join)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, join.Position)

		// Re-joining returns the held position unchanged.
		code = call(t, srv, "POST", "/v1/events/"+event+"/waitlist/join",
			rsvp.JoinWaitlistRequest{UserID: "dave"}, &join)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, join.Position, "re-join should be idempotent")
	})

	t.Run("VIP_Jumps_Queue", func(t *testing.T) {
		var join rsvp.JoinWaitlistResponse
		code := call(t, srv, "POST", "/v1/events/"+event+"/waitlist/join",
			rsvp.JoinWaitlistRequest{UserID: "vip-eve"}, &join)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, join.Position, "vip tier should place at the front")

		wl := snapshot(t, srv, event)
		require.Len(t, wl.Entries, 3)
		assert.Equal(t, "vip-eve", wl.Entries[0].UserID)
		assert.Equal(t, "carol", wl.Entries[1].UserID, "displacement costs carol one rank")
		assert.Equal(t, "dave", wl.Entries[2].UserID)
		for i, e := range wl.Entries {
			assert.Equal(t, i+1, e.Position, "positions must be gap-free")
		}
		eveID = wl.Entries[0].AttendeeID

		pos := position(t, srv, event, "carol")
		require.NotNil(t, pos)
		assert.Equal(t, 2, *pos)
	})

	t.Run("Withdraw_Promotes_Head", func(t *testing.T) {
		t.Log("Withdrawing alice; the freed seat should promote vip-eve...")
		code := call(t, srv, "DELETE", "/v1/events/"+event+"/attendees/"+aliceID, nil, nil)
		require.Equal(t, http.StatusOK, code)

		eve := getAttendee(t, srv, event, eveID)
		assert.Equal(t, "going", eve.Status)
		assert.NotNil(t, eve.PromotedAt, "promotion should stamp promotedAt")
		require.NotEmpty(t, eve.History)
		last := eve.History[len(eve.History)-1]
		assert.Equal(t, "going", last.Status)
		assert.Equal(t, "promotion", last.ChangedBy)

		// The remaining entries renumber by arrival order.
		wl := snapshot(t, srv, event)
		require.Len(t, wl.Entries, 2)
		assert.Equal(t, "carol", wl.Entries[0].UserID)
		assert.Equal(t, 1, wl.Entries[0].Position)
		assert.Equal(t, "dave", wl.Entries[1].UserID)
		assert.Equal(t, 2, wl.Entries[1].Position)

		code = call(t, srv, "GET", "/v1/events/"+event+"/attendees/"+aliceID, nil, nil)
		assert.Equal(t, http.StatusNotFound, code, "withdrawn registration should be gone")
	})

	t.Run("Cancellation_Promotes_Next", func(t *testing.T) {
		bob := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "bob", Status: "not-going"})
		assert.Equal(t, "not-going", bob.Status)
		assert.True(t, bob.Changed)

		carol := getAttendee(t, srv, event, carolID)
		assert.Equal(t, "going", carol.Status, "head of the waitlist should fill bob's seat")
		assert.NotNil(t, carol.PromotedAt)
		assert.Nil(t, position(t, srv, event, "carol"))

		pos := position(t, srv, event, "dave")
		require.NotNil(t, pos)
		assert.Equal(t, 1, *pos)
	})

	t.Run("Repeat_Request_Is_A_NoOp", func(t *testing.T) {
		carol := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "carol", Status: "going"})
		assert.Equal(t, "going", carol.Status)
		assert.False(t, carol.Created)
		assert.False(t, carol.Changed, "matching settled state should write nothing")
	})

	t.Run("Recalculate_Is_Idempotent", func(t *testing.T) {
		var first rsvp.RecalculateResponse
		code := call(t, srv, "POST", "/v1/events/"+event+"/waitlist/recalculate", nil, &first)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, first.Count, "only dave should remain waitlisted")

		var second rsvp.RecalculateResponse
		code = call(t, srv, "POST", "/v1/events/"+event+"/waitlist/recalculate", nil, &second)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, first.Count, second.Count)

		wl := snapshot(t, srv, event)
		require.Len(t, wl.Entries, 1)
		assert.Equal(t, "dave", wl.Entries[0].UserID)
		assert.Equal(t, 1, wl.Entries[0].Position)
	})

	t.Run("Leave_Empties_Waitlist", func(t *testing.T) {
		code := call(t, srv, "POST", "/v1/events/"+event+"/waitlist/leave",
			rsvp.LeaveWaitlistRequest{UserID: "dave"}, nil)
		require.Equal(t, http.StatusOK, code)

		assert.Empty(t, snapshot(t, srv, event).Entries)
		assert.Nil(t, position(t, srv, event, "dave"))

		var cfg rsvp.EventConfigResponse
		code = call(t, srv, "GET", "/v1/events/"+event+"/config", nil, &cfg)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2, cfg.GoingCount, "vip-eve and carol hold the seats")
		assert.False(t, cfg.HasRoom)
	})

	t.Run("Purge_Removes_Everything", func(t *testing.T) {
		var purge rsvp.PurgeResponse
		code := call(t, srv, "DELETE", "/v1/events/"+event, nil, &purge)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, event, purge.EventID)
		assert.Equal(t, 4, purge.Removed, "bob, carol, dave, and vip-eve remain; alice was withdrawn")

		var apiErr rsvp.ErrorResponse
		code = call(t, srv, "GET", "/v1/events/"+event+"/attendees/"+carolID, nil, &apiErr)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "ATTENDEE_NOT_FOUND", apiErr.Code)

		code = call(t, srv, "GET", "/v1/events/"+event+"/config", nil, &apiErr)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "EVENT_NOT_FOUND", apiErr.Code)
	})
}

// TestFamilyCascade exercises dependent admission, the per-primary ceiling,
// and the mirror of a primary's cancellation onto its dependents.
func TestFamilyCascade(t *testing.T) {
	srv := newRSVPServer(t)
	const event = "evt-family"

	var cfg rsvp.EventConfigResponse
	code := call(t, srv, "PUT", "/v1/events/"+event+"/config",
		rsvp.EventConfigRequest{Capacity: intPtr(1), WaitlistEnabled: true}, &cfg)
	require.Equal(t, http.StatusOK, code)

	frank := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "frank", Status: "going"})
	require.Equal(t, "going", frank.Status)

	kidOne := setStatus(t, srv, event, rsvp.StatusRequest{
		UserID: "frank", AttendeeType: "dependent", DisplayName: "Frank Jr", Status: "going",
	})
	assert.Equal(t, "going", kidOne.Status, "dependents are exempt from capacity")
	assert.NotEqual(t, frank.AttendeeID, kidOne.AttendeeID)

	kidTwo := setStatus(t, srv, event, rsvp.StatusRequest{
		UserID: "frank", AttendeeType: "dependent", DisplayName: "Frances", Status: "going",
	})
	assert.Equal(t, "going", kidTwo.Status)

	t.Run("Dependent_Ceiling_Rejects_The_Third", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "PUT", "/v1/events/"+event+"/rsvp", rsvp.StatusRequest{
			UserID: "frank", AttendeeType: "dependent", DisplayName: "One Too Many", Status: "going",
		}, &apiErr)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "FAMILY_LIMIT_EXCEEDED", apiErr.Code)
	})

	t.Run("Dependents_Do_Not_Consume_Capacity", func(t *testing.T) {
		var cfg rsvp.EventConfigResponse
		code := call(t, srv, "GET", "/v1/events/"+event+"/config", nil, &cfg)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, cfg.GoingCount, "only frank counts against capacity")
	})

	t.Run("Cancellation_Mirrors_Onto_Dependents", func(t *testing.T) {
		grace := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "grace", Status: "going"})
		require.Equal(t, "waitlisted", grace.Status)

		t.Log("Frank cancels; the family should follow and grace should take the seat...")
		frankOut := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "frank", Status: "not-going"})
		require.Equal(t, "not-going", frankOut.Status)

		for _, dep := range []rsvp.StatusResponse{kidOne, kidTwo} {
			doc := getAttendee(t, srv, event, dep.AttendeeID)
			assert.Equal(t, "not-going", doc.Status)
			require.NotEmpty(t, doc.History)
			assert.Equal(t, "cascade", doc.History[len(doc.History)-1].ChangedBy)
		}

		graceDoc := getAttendee(t, srv, event, grace.AttendeeID)
		assert.Equal(t, "going", graceDoc.Status, "freed seat should promote grace")
		assert.NotNil(t, graceDoc.PromotedAt)
	})
}

// TestCapacityIncreasePromotes pins the administrative path: raising capacity
// sweeps the waitlist in the same request instead of waiting for the next
// withdrawal.
func TestCapacityIncreasePromotes(t *testing.T) {
	srv := newRSVPServer(t)
	const event = "evt-grow"

	code := call(t, srv, "PUT", "/v1/events/"+event+"/config",
		rsvp.EventConfigRequest{Capacity: intPtr(1), WaitlistEnabled: true}, nil)
	require.Equal(t, http.StatusOK, code)

	setStatus(t, srv, event, rsvp.StatusRequest{UserID: "henry", Status: "going"})
	iris := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "iris", Status: "going"})
	jack := setStatus(t, srv, event, rsvp.StatusRequest{UserID: "jack", Status: "going"})
	require.Equal(t, "waitlisted", iris.Status)
	require.Equal(t, "waitlisted", jack.Status)

	var cfg rsvp.EventConfigResponse
	code = call(t, srv, "PUT", "/v1/events/"+event+"/config",
		rsvp.EventConfigRequest{Capacity: intPtr(3), WaitlistEnabled: true}, &cfg)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, cfg.GoingCount, "both waitlisted attendees should promote immediately")
	assert.False(t, cfg.HasRoom)

	assert.Empty(t, snapshot(t, srv, event).Entries)
	for _, resp := range []rsvp.StatusResponse{iris, jack} {
		doc := getAttendee(t, srv, event, resp.AttendeeID)
		assert.Equal(t, "going", doc.Status)
		assert.NotNil(t, doc.PromotedAt)
	}
}

// TestAdmissionRejections covers the error surface: full events without a
// waitlist, disabled waitlists, unknown events, and orphan dependents.
func TestAdmissionRejections(t *testing.T) {
	srv := newRSVPServer(t)
	const event = "evt-strict"

	code := call(t, srv, "PUT", "/v1/events/"+event+"/config",
		rsvp.EventConfigRequest{Capacity: intPtr(0), WaitlistEnabled: false}, nil)
	require.Equal(t, http.StatusOK, code)

	t.Run("Full_Event_Without_Waitlist_Rejects", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "PUT", "/v1/events/"+event+"/rsvp",
			rsvp.StatusRequest{UserID: "alice", Status: "going"}, &apiErr)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "CAPACITY_EXCEEDED", apiErr.Code)
	})

	t.Run("Disabled_Waitlist_Rejects_Joins", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "POST", "/v1/events/"+event+"/waitlist/join",
			rsvp.JoinWaitlistRequest{UserID: "alice"}, &apiErr)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", apiErr.Code)
	})

	t.Run("Unknown_Event_Is_404", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "PUT", "/v1/events/evt-ghost/rsvp",
			rsvp.StatusRequest{UserID: "alice", Status: "going"}, &apiErr)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "EVENT_NOT_FOUND", apiErr.Code)
	})

	t.Run("Dependent_Without_Going_Primary_Rejects", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "PUT", "/v1/events/"+event+"/rsvp", rsvp.StatusRequest{
			UserID: "bob", AttendeeType: "dependent", DisplayName: "Orphan", Status: "going",
		}, &apiErr)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "PRIMARY_NOT_GOING", apiErr.Code)
	})

	t.Run("Malformed_Body_Is_400", func(t *testing.T) {
		var apiErr rsvp.ErrorResponse
		code := call(t, srv, "PUT", "/v1/events/"+event+"/rsvp",
			map[string]string{"userId": "alice"}, &apiErr)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "INVALID_REQUEST", apiErr.Code)
	})
}

func intPtr(v int) *int { return &v }
