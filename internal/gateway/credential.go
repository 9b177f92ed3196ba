package gateway

import (
	"strings"
	"time"

	"camrent/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// CheckCredential is the pre-flight check run before any request leaves the
// process. Signatures are not verified here; the backend does that. Only
// presence and, for JWTs, the exp claim are checked.
func CheckCredential(cred domain.Credential, now time.Time) error {
	token := strings.TrimSpace(cred.Token)
	if token == "" {
		return domain.E(domain.KindUnauthenticated, "gateway", "no session credential")
	}
	if strings.Count(token, ".") != 2 {
		// opaque token
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return &domain.Error{Kind: domain.KindUnauthenticated, Op: "gateway", Message: "malformed session credential", Err: err}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return &domain.Error{Kind: domain.KindUnauthenticated, Op: "gateway", Message: "malformed session credential", Err: err}
	}
	if exp != nil && !exp.After(now) {
		return domain.E(domain.KindUnauthenticated, "gateway", "session expired")
	}
	return nil
}
