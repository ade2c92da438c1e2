package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
)

// refresh tokens outlive access tokens by far: staff stay logged in for a year
const refreshTTL = 8760 * time.Hour

// UserDirectory is the part of the user store the bearer server needs.
type UserDirectory interface {
	Authenticate(ctx context.Context, username, password string) (access.Identity, error)
	Find(ctx context.Context, username string) (access.Identity, error)
}

type credentialsVerifier struct {
	db    *sql.DB
	users UserDirectory
	now   func() time.Time
}

func CredentialsVerifier(db *sql.DB, users UserDirectory) oauth.CredentialsVerifier {
	return &credentialsVerifier{db, users, time.Now}
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	_, err := cs.users.Authenticate(r.Context(), username, password)
	return err
}

func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	_, err := cs.db.Exec(
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		credential,
		tokenID,
		refreshTokenID,
		cs.now().Add(refreshTTL).Unix(),
	)
	return errors.Wrap(err, "store token")
}

// ValidateTokenID consumes a refresh token: each one can be used once.
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	var expiration int64
	err := cs.db.
		QueryRow(`
			DELETE FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?
			RETURNING expiration`,
			credential,
			tokenID,
			refreshTokenID,
		).
		Scan(&expiration)
	if err != nil {
		return errors.Wrap(err, "could not refresh")
	}

	if expiration < cs.now().Unix() {
		return errors.New("could not refresh: expired")
	}
	return nil
}

// AddClaims reads the role from the store on every issue, so a refresh picks up role changes.
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	id, err := cs.users.Find(ctx, credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimRole:   id.Role.String(),
		ClaimUserID: strconv.FormatInt(id.UserID, 10),
	}, nil
}

func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}

func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
