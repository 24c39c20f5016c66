package identity_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/identity"
)

const clientID = "client-123.apps.googleusercontent.com"

func tokeninfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleVerify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "valid string encoded fields",
			status: http.StatusOK,
			body:   `{"sub":"1001","email":"a@example.com","email_verified":"true","aud":"` + clientID + `","expires_in":"3599"}`,
		},
		{
			name:   "valid native json fields",
			status: http.StatusOK,
			body:   `{"sub":"1001","email":"a@example.com","email_verified":true,"aud":"` + clientID + `","expires_in":3599}`,
		},
		{
			name:   "unparseable lifetime tolerated",
			status: http.StatusOK,
			body:   `{"sub":"1001","email":"a@example.com","email_verified":"true","aud":"` + clientID + `","expires_in":"soon"}`,
		},
		{
			name:    "audience mismatch",
			status:  http.StatusOK,
			body:    `{"sub":"1001","email_verified":"true","aud":"other","expires_in":"3599"}`,
			wantErr: identity.ErrAudienceMismatch,
		},
		{
			name:    "unverified email",
			status:  http.StatusOK,
			body:    `{"sub":"1001","email_verified":"false","aud":"` + clientID + `","expires_in":"3599"}`,
			wantErr: identity.ErrUnverifiedEmail,
		},
		{
			name:    "expiring token",
			status:  http.StatusOK,
			body:    `{"sub":"1001","email_verified":"true","aud":"` + clientID + `","expires_in":"30"}`,
			wantErr: identity.ErrTokenExpiring,
		},
		{
			name:    "rejected by google",
			status:  http.StatusBadRequest,
			body:    `{"error_description":"Invalid Value"}`,
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "google outage",
			status:  http.StatusServiceUnavailable,
			body:    `{}`,
			wantErr: identity.ErrUnavailable,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: identity.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokeninfoServer(t, tt.status, tt.body)
			g := identity.NewGoogle(clientID, identity.WithEndpoint(srv.URL))

			id, err := g.Verify(context.Background(), "tok", "")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, entitle.ErrAuthentication)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "1001", id.SubjectID)
			assert.Equal(t, "a@example.com", id.Email)
		})
	}
}

func TestGoogleAllowedExtensions(t *testing.T) {
	srv := tokeninfoServer(t, http.StatusOK,
		`{"sub":"1001","email_verified":"true","aud":"`+clientID+`","expires_in":"3599"}`)
	g := identity.NewGoogle(clientID,
		identity.WithEndpoint(srv.URL),
		identity.WithAllowedExtensions("jdidlnlcanjlbabpcgkcdkpfigfemhjd"),
	)

	_, err := g.Verify(context.Background(), "tok", "someone-else")
	assert.ErrorIs(t, err, identity.ErrClientNotAllowed)

	id, err := g.Verify(context.Background(), "tok", " jdidlnlcanjlbabpcgkcdkpfigfemhjd ")
	require.NoError(t, err)
	assert.Equal(t, "1001", id.SubjectID)

	_, err = g.Verify(context.Background(), "tok", "")
	assert.NoError(t, err, "an absent extension id skips the allow list")
}

func TestGoogleTimeoutFailsClosed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := identity.NewGoogle(clientID,
		identity.WithEndpoint(srv.URL),
		identity.WithTimeout(50*time.Millisecond),
	)

	start := time.Now()
	_, err := g.Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, identity.ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmptyTokenRejected(t *testing.T) {
	g := identity.NewGoogle(clientID, identity.WithEndpoint("http://127.0.0.1:0"))
	_, err := g.Verify(context.Background(), "", "")
	assert.True(t, errors.Is(err, identity.ErrInvalidToken))
}

func TestStatic(t *testing.T) {
	v := identity.Static{"good": {SubjectID: "s1", Email: "s1@example.com"}}

	id, err := v.Verify(context.Background(), "good", "")
	require.NoError(t, err)
	assert.Equal(t, "s1", id.SubjectID)

	_, err = v.Verify(context.Background(), "bad", "")
	assert.ErrorIs(t, err, entitle.ErrAuthentication)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := identity.FromContext(context.Background())
	assert.False(t, ok)

	ctx := identity.NewContext(context.Background(), &identity.Identity{SubjectID: "s1"})
	got, ok := identity.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s1", got.SubjectID)
}
