package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/dcastillo/authcore-backend/pkg/errors"
)

// VerificationTokenFromQuery extracts and shape-checks the token query
// parameter. Tokens are 64 lowercase hex characters; anything else is
// rejected before it reaches the database.
func VerificationTokenFromQuery(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if len(token) != 64 || !isLowerHex(token) {
		return "", pkgerrors.New(pkgerrors.CodeInvalidToken, "invalid or expired token")
	}
	return token, nil
}

func isLowerHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
