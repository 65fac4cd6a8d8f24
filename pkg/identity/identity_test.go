package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(a *Authenticator, req *http.Request) (*httptest.ResponseRecorder, *model.Caller) {
	var got *model.Caller
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := CallerFrom(r.Context()); ok {
			got = &c
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestAuthenticator_Headers(t *testing.T) {
	a := &Authenticator{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserRole, "Seller")

	rec, c := serve(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c)
	assert.Equal(t, model.Caller{ID: "u1", Role: model.RoleSeller}, *c)

	_, c = serve(a, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, c)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserRole, "root")
	rec, _ = serve(a, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_Token(t *testing.T) {
	a := &Authenticator{Secret: "s3cret"}

	token, err := Issue("s3cret", model.Caller{ID: "42", Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec, c := serve(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c)
	assert.True(t, c.IsAdmin())
	assert.Equal(t, "42", c.ID)

	t.Run("headers are ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderUserID, "u1")
		_, c := serve(a, req)
		assert.Nil(t, c)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged, err := Issue("other", model.Caller{ID: "42", Role: model.RoleAdmin}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rec, c := serve(a, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, c)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := Issue("s3cret", model.Caller{ID: "42"}, -time.Minute)
		require.NoError(t, err)

		_, err = ParseToken("Bearer "+old, "s3cret")
		assert.Error(t, err)
	})

	t.Run("default role", func(t *testing.T) {
		tok, err := Issue("s3cret", model.Caller{ID: "7"}, time.Hour)
		require.NoError(t, err)

		c, err := ParseToken(tok, "s3cret")
		require.NoError(t, err)
		assert.Equal(t, model.RoleCustomer, c.Role)
	})
}
