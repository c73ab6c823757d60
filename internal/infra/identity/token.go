package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenExpiry reads the exp claim from the access token without
// verifying the signature. The provider signed the token; the client only
// needs the expiry for scheduling refreshes, not for trust decisions.
func accessTokenExpiry(accessToken string) time.Time {
	parser := jwt.NewParser()

	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}

	expiry, err := token.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}
	}

	return expiry.Time
}
