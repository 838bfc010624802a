package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/aturganbay/shoply/internal/authkit"
)

// profileIdentity stubs only the lookup the profile handler performs.
type profileIdentity struct {
	user    authkit.User
	findErr error
}

func (identity *profileIdentity) FindByID(context.Context, string) (authkit.User, error) {
	if identity.findErr != nil {
		return authkit.User{}, identity.findErr
	}
	return identity.user, nil
}

func (identity *profileIdentity) FindByEmail(context.Context, string) (authkit.User, error) {
	return authkit.User{}, authkit.ErrUserNotFound
}

func (identity *profileIdentity) CreateUser(context.Context, authkit.NewUser) (authkit.User, error) {
	return authkit.User{}, authkit.ErrInvalidUser
}

func (identity *profileIdentity) CheckPassword(context.Context, authkit.User, string) (bool, error) {
	return false, nil
}

func (identity *profileIdentity) GetRoles(context.Context, authkit.User) ([]string, error) {
	return nil, nil
}

func (identity *profileIdentity) SetPassword(context.Context, authkit.User, string) error {
	return nil
}

func (identity *profileIdentity) MarkEmailConfirmed(context.Context, authkit.User) error {
	return nil
}

func (identity *profileIdentity) GeneratePurposeToken(context.Context, authkit.TokenPurpose, authkit.User) (string, error) {
	return "", authkit.ErrPurposeTokenInvalid
}

func (identity *profileIdentity) ConfirmPurposeToken(context.Context, authkit.TokenPurpose, authkit.User, string) error {
	return authkit.ErrPurposeTokenInvalid
}

func profileRouter(t *testing.T, identity *profileIdentity, claims *authkit.AccessTokenClaims) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/me", func(contextGin *gin.Context) {
		if claims != nil {
			contextGin.Set(authkit.ClaimsContextKey, claims)
		}
		contextGin.Next()
	}, HandleProfile(identity, zaptest.NewLogger(t)))
	return router
}

func TestHandleProfileReturnsAccount(t *testing.T) {
	identity := &profileIdentity{user: authkit.User{
		ID:             "user-3",
		Email:          "zhanna@example.com",
		UserName:       "zhanna",
		EmailConfirmed: true,
	}}
	claims := &authkit.AccessTokenClaims{
		UserID:    "user-3",
		UserEmail: "zhanna@example.com",
		UserRoles: []string{"customer"},
	}
	router := profileRouter(t, identity, claims)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", recorder.Code, recorder.Body.String())
	}

	var body map[string]interface{}
	if unmarshalErr := json.Unmarshal(recorder.Body.Bytes(), &body); unmarshalErr != nil {
		t.Fatalf("unexpected body %q: %v", recorder.Body.String(), unmarshalErr)
	}
	if body["id"] != "user-3" || body["userName"] != "zhanna" || body["emailConfirmed"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	roles, _ := body["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != "customer" {
		t.Fatalf("roles %v, want [customer]", body["roles"])
	}
}

func TestHandleProfileRejectsMissingClaims(t *testing.T) {
	router := profileRouter(t, &profileIdentity{}, nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", recorder.Code)
	}
}

func TestHandleProfileRejectsUnknownUser(t *testing.T) {
	identity := &profileIdentity{findErr: authkit.ErrUserNotFound}
	claims := &authkit.AccessTokenClaims{UserID: "user-gone"}
	router := profileRouter(t, identity, claims)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", recorder.Code)
	}
}
