package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/model"
)

type userDirectoryMock struct{ mock.Mock }

func (m *userDirectoryMock) Authenticate(ctx context.Context, username, password string) (access.Identity, error) {
	args := m.Called(username, password)
	return args.Get(0).(access.Identity), args.Error(1)
}

func (m *userDirectoryMock) Find(ctx context.Context, username string) (access.Identity, error) {
	args := m.Called(username)
	return args.Get(0).(access.Identity), args.Error(1)
}

func setupVerifier(t *testing.T) (*credentialsVerifier, *userDirectoryMock) {
	db, err := database.Open(filepath.Join(t.TempDir(), "httpx.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("INSERT INTO user (username, password_hash, role) VALUES ('bob', x'00', 'staff')")
	require.NoError(t, err)

	users := new(userDirectoryMock)
	return CredentialsVerifier(db, users).(*credentialsVerifier), users
}

func TestValidateUser(t *testing.T) {
	cv, users := setupVerifier(t)
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	users.On("Authenticate", "bob", "pw").Return(access.Identity{UserID: 1, Username: "bob", Role: access.Staff}, nil)
	users.On("Authenticate", "bob", "bad").Return(access.Identity{}, model.ErrUnauthorized)

	assert.NoError(t, cv.ValidateUser("bob", "pw", "", r))
	assert.ErrorIs(t, cv.ValidateUser("bob", "bad", "", r), model.ErrUnauthorized)
	users.AssertExpectations(t)
}

func TestAddClaims(t *testing.T) {
	cv, users := setupVerifier(t)

	users.On("Find", "bob").Return(access.Identity{UserID: 7, Username: "bob", Role: access.Staff}, nil)

	claims, err := cv.AddClaims(oauth.BearerToken, "bob", "tid", "", httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{ClaimRole: "staff", ClaimUserID: "7"}, claims)

	id, err := IdentityFromClaims("bob", claims)
	require.NoError(t, err)
	assert.Equal(t, access.Identity{UserID: 7, Username: "bob", Role: access.Staff}, id)

	_, err = IdentityFromClaims("bob", map[string]string{ClaimRole: "root", ClaimUserID: "7"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = IdentityFromClaims("bob", map[string]string{ClaimRole: "staff"})
	assert.Error(t, err)
}

func TestRefreshTokensAreSingleUse(t *testing.T) {
	cv, _ := setupVerifier(t)

	require.NoError(t, cv.StoreTokenID(oauth.BearerToken, "bob", "t1", "r1"))

	assert.NoError(t, cv.ValidateTokenID(oauth.BearerToken, "bob", "t1", "r1"))
	assert.Error(t, cv.ValidateTokenID(oauth.BearerToken, "bob", "t1", "r1"))
	assert.Error(t, cv.ValidateTokenID(oauth.BearerToken, "bob", "other", "r1"))
}

func TestRefreshTokensExpire(t *testing.T) {
	cv, _ := setupVerifier(t)

	cv.now = func() time.Time { return time.Now().Add(-2 * refreshTTL) }
	require.NoError(t, cv.StoreTokenID(oauth.BearerToken, "bob", "t1", "r1"))
	cv.now = time.Now

	assert.EqualError(t, cv.ValidateTokenID(oauth.BearerToken, "bob", "t1", "r1"), "could not refresh: expired")
}
