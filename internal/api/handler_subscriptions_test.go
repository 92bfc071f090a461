package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-gate-backend/internal/auth"
)

func TestPutSubscription(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.token(t, "S1001", auth.RoleUser)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"no token", "", map[string]string{"endpoint": "https://push.example/a", "p256dh": "k", "auth": "a"}, http.StatusUnauthorized},
		{"no body", owner, nil, http.StatusBadRequest},
		{"missing keys", owner, map[string]string{"endpoint": "https://push.example/a"}, http.StatusBadRequest},
		{"valid", owner, map[string]string{"endpoint": "https://push.example/a", "p256dh": "k", "auth": "a"}, http.StatusCreated},
		{"replace", owner, map[string]string{"endpoint": "https://push.example/a", "p256dh": "k2", "auth": "a2"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/subscriptions", tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := env.do(t, http.MethodPut, "/api/subscriptions", owner, map[string]string{"endpoint": "https://push.example/a"})
	e := decode[errorEnvelope](t, w)
	assert.Equal(t, "InvalidInput", e.Error.Kind)
	assert.Equal(t, "required", e.Error.Fields["p256dh"])
	assert.Equal(t, "required", e.Error.Fields["auth"])

	subs, err := env.store.PushSubscriptionsFor(context.Background(), "S1001")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256DH)
}

func TestSubscriptionOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.token(t, "S1001", auth.RoleUser)
	other := env.token(t, "S2002", auth.RoleUser)

	endpoint := "https://push.example/send/abc%3D%3D"
	body := map[string]string{"endpoint": endpoint, "p256dh": "k", "auth": "a"}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, "/api/subscriptions", owner, body).Code)

	// The endpoint travels undecoded in the query string.
	path := "/api/subscriptions?endpoint=" + endpoint
	w := env.do(t, http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), endpoint)

	w = env.do(t, http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape("https://push.example/none"), owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/subscriptions", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/subscriptions", other, map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/subscriptions", owner, map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
