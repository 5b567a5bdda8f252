package gateway

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sign returns the HS256 token the gateway expects in the "sign" field.
// The claims mirror the request body plus the issue time.
func Sign(payload SignPayload, secret string, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"school_id":    payload.SchoolID,
		"amount":       payload.Amount,
		"callback_url": payload.CallbackURL,
		"iat":          issuedAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifySign parses a sign token produced with the shared secret.
func VerifySign(token, secret string) (*SignPayload, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	payload := &SignPayload{}
	payload.SchoolID, _ = claims["school_id"].(string)
	payload.Amount, _ = claims["amount"].(string)
	payload.CallbackURL, _ = claims["callback_url"].(string)
	return payload, nil
}
