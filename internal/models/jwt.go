package models

// JWTClaims holds the verified claims extracted from an access token.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Phone string `json:"phone_number"`
	Name  string `json:"name"`
	Iss   string `json:"iss"`
	Aud   string `json:"aud"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
}
