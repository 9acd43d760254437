package integration

import (
	"encoding/json"
	"net/http"
	"slices"
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/streetball/api/pkg/user"
)

func TestRoleMatrix(t *testing.T) {
	routes := []struct {
		path   string
		player int
		coach  int
		admin  int
	}{
		{"/", http.StatusOK, http.StatusOK, http.StatusOK},
		{"/api/v1/users/me", http.StatusOK, http.StatusOK, http.StatusOK},
		{"/api/v1/auth/me", http.StatusOK, http.StatusOK, http.StatusOK},
		{"/api/v1/users", http.StatusForbidden, http.StatusForbidden, http.StatusOK},
		{"/api/v1/users/u-player", http.StatusForbidden, http.StatusForbidden, http.StatusOK},
	}

	for _, method := range []string{"jwt", "session"} {
		creds := map[string]func(*http.Request){}
		for _, subject := range []string{"u-player", "u-coach", "u-admin"} {
			if method == "jwt" {
				creds[subject] = bearer(signToken(t, subject, nil))
			} else {
				creds[subject] = withCookie(newSession(t, subject))
			}
		}

		for _, rt := range routes {
			want := map[string]int{"u-player": rt.player, "u-coach": rt.coach, "u-admin": rt.admin}
			for subject, status := range want {
				t.Run(method+" "+subject+" "+rt.path, func(t *testing.T) {
					resp := getURL(t, rt.path, creds[subject])
					body := readBody(t, resp)
					if resp.StatusCode != status {
						t.Errorf("status = %d, want %d: %s", resp.StatusCode, status, body)
					}
				})
			}
		}
	}
}

func TestStoredRolesOverrideTokenClaims(t *testing.T) {
	token := signToken(t, "u-player", jwtlib.MapClaims{"roles": []string{"admin"}})

	resp := getURL(t, "/api/v1/users", bearer(token))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a self-asserted admin claim", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCurrentUserProfile(t *testing.T) {
	resp := getURL(t, "/api/v1/users/me", bearer(signToken(t, "u-coach", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var env envelope
	decodeJSON(t, resp, &env)
	var u user.User
	if err := json.Unmarshal(env.Data, &u); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if u.ID != "u-coach" || u.Email != "coach@streetball.test" {
		t.Errorf("user = %+v", u)
	}
	if !slices.Equal(u.Roles, []string{"user", "coach"}) {
		t.Errorf("roles = %v", u.Roles)
	}
}

func TestAdminListsUsers(t *testing.T) {
	resp := getURL(t, "/api/v1/users", bearer(signToken(t, "u-admin", nil)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var env envelope
	decodeJSON(t, resp, &env)
	var users []user.User
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("decoding users: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("got %d users, want 3", len(users))
	}
}
