package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/jwtauth"

	"github.com/stakearena/arena-services/internal/arenasvc/service"
)

var tokenAuth *jwtauth.JWTAuth

// Init builds the shared verifier from JWT_SECRET_KEY. Token issuance
// happens in the account system; this side only verifies.
func Init() {
	tokenAuth = jwtauth.New("HS256", []byte(os.Getenv("JWT_SECRET_KEY")), nil)
}

func TokenAuth() *jwtauth.JWTAuth {
	return tokenAuth
}

// UserIDFromRequest authenticates a request before the websocket upgrade.
// The token rides in the Authorization header or, for browser websocket
// clients that cannot set headers, in the "token" query parameter.
func UserIDFromRequest(r *http.Request) (string, error) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		return "", service.E(service.KindUnauthenticated, "missing auth token")
	}

	token, err := jwtauth.VerifyToken(tokenAuth, tokenString)
	if err != nil {
		return "", service.E(service.KindUnauthenticated, "invalid auth token")
	}
	claim, ok := token.Get("user_id")
	if !ok {
		return "", service.E(service.KindUnauthenticated, "token is missing user_id")
	}
	userID, ok := claim.(string)
	if !ok || userID == "" {
		return "", service.E(service.KindUnauthenticated, "token has malformed user_id")
	}
	return userID, nil
}

// UserIDFromContext pulls the authenticated user out of a request that went
// through the jwtauth.Verifier middleware.
func UserIDFromContext(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", service.E(service.KindUnauthenticated, "invalid auth token")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", service.E(service.KindUnauthenticated, "token is missing user_id")
	}
	return userID, nil
}
