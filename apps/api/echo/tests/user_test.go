package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/coachingcentre/platform/apps/api/echo"
	"github.com/coachingcentre/platform/core/user"
	"github.com/coachingcentre/platform/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Hero", "hero01", "hero@coaching.test", "Tr1cky#Horse", []string{user.RoleLearner}, true)
	testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog01", "ndog@coaching.test", "Tr1cky#Horse", []string{user.RoleLearner}, false)

	body := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	tests := []httpTest{
		{name: "missing fields", body: body("", ""), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: body("nobody", "Tr1cky#Horse"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "wrong password", body: body("hero01", "nope"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "inactive", body: body("ndog01", "Tr1cky#Horse"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "by username", body: body("HERO01", "Tr1cky#Horse"), wantCode: http.StatusOK},
		{name: "by email", body: body("hero@coaching.test", "Tr1cky#Horse"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/login", "", tt.body)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			claims := new(echoapi.Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(e.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.True(t, claims.IsLearner)
			assert.False(t, claims.IsInstructor)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog01", "ndog@coaching.test", "", []string{user.RoleLearner}, false)
	learner := testutil.CreateUser(t, e.usrRepo, "Hero", "hero01", "hero@coaching.test", "", []string{user.RoleLearner}, true)

	now := time.Now()
	unrefreshable := echoapi.UserClaims(e.conf, learner)
	unrefreshable.StandardClaims = jwt.StandardClaims{
		Issuer:    e.conf.AppName,
		Subject:   learner.ID,
		ExpiresAt: now.Add(e.conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  now.Unix(),
	}
	unrefreshable.OrigIssuedAt = now.Add(-2 * e.conf.Server.JWTRefreshExpirationDelta).Unix() // older than threshold
	unrefreshableToken, err := echoapi.GenerateToken(e.conf, unrefreshable)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: e.getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: e.getToken(t, learner), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/token-refresh", tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada001", "ada@coaching.test", "", []string{user.RoleInstructor}, true)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob001", "bob@coaching.test", "", []string{user.RoleLearner}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Zed", "admin1", "admin@coaching.test", "", []string{user.RoleAdmin}, true)
	adminToken := e.getToken(t, admin)

	path := func(search, ordering string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	ids := func(users ...user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantIDs  []string
	}{
		{name: "Auth required", path: path("", ""), wantCode: http.StatusUnauthorized},
		{name: "Admin required", path: path("", ""), token: e.getToken(t, bob), wantCode: http.StatusForbidden},
		{name: "all by name", path: path("", "name"), token: adminToken, wantCode: http.StatusOK, wantIDs: ids(ada, bob, admin)},
		{name: "all by -name", path: path("", "-name"), token: adminToken, wantCode: http.StatusOK, wantIDs: ids(admin, bob, ada)},
		{name: "search", path: path("BOB", ""), token: adminToken, wantCode: http.StatusOK, wantIDs: ids(bob)},
		{name: "role", path: path("", "name", user.RoleInstructor, user.RoleAdmin), token: adminToken, wantCode: http.StatusOK, wantIDs: ids(ada, admin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var users []user.User
			decode(t, rec, &users)
			assert.Equal(t, tt.wantIDs, ids(users...))
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	e := setup(t)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob001", "bob@coaching.test", "", []string{user.RoleLearner}, true)
	eve := testutil.CreateUser(t, e.usrRepo, "Eve", "eve001", "eve@coaching.test", "", []string{user.RoleLearner}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Zed", "admin1", "admin@coaching.test", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{name: "self", path: "/v1/users/" + bob.ID, token: e.getToken(t, bob), wantCode: http.StatusOK},
		{name: "someone else", path: "/v1/users/" + eve.ID, token: e.getToken(t, bob), wantCode: http.StatusNotFound},
		{name: "admin", path: "/v1/users/" + eve.ID, token: e.getToken(t, admin), wantCode: http.StatusOK},
		{name: "unknown", path: "/v1/users/nope", token: e.getToken(t, admin), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob001", "bob@coaching.test", "", []string{user.RoleLearner}, true)

	rec := e.do(http.MethodGet, "/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodGet, "/v1/users/me", e.getToken(t, bob))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got user.User
	decode(t, rec, &got)
	assert.Equal(t, bob.ID, got.ID)
	assert.Equal(t, "bob001", got.Username)
}

func Test_userApi_queryInstructors(t *testing.T) {
	e := setup(t)
	grace := testutil.CreateUser(t, e.usrRepo, "Grace", "grace1", "grace@coaching.test", "", []string{user.RoleInstructor}, true)
	ada := testutil.CreateUser(t, e.usrRepo, "Ada", "ada001", "ada@coaching.test", "", []string{user.RoleInstructor}, true)
	testutil.CreateUser(t, e.usrRepo, "Old", "old001", "old@coaching.test", "", []string{user.RoleInstructor}, false)
	bob := testutil.CreateUser(t, e.usrRepo, "Bob", "bob001", "bob@coaching.test", "", []string{user.RoleLearner}, true)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantIDs  []string
	}{
		{name: "learner", path: "/v1/users/instructors", token: e.getToken(t, bob), wantCode: http.StatusForbidden},
		{name: "active only, by name", path: "/v1/users/instructors", token: e.getToken(t, grace), wantCode: http.StatusOK, wantIDs: []string{ada.ID, grace.ID}},
		{name: "search", path: "/v1/users/instructors?search=gra", token: e.getToken(t, ada), wantCode: http.StatusOK, wantIDs: []string{grace.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var users []user.User
			decode(t, rec, &users)
			got := make([]string, 0, len(users))
			for _, u := range users {
				got = append(got, u.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}
