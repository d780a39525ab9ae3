// Package secretary declares the ciphering and token service contract.
package secretary

// Secretary provides credential ciphering and bearer token handling.
type Secretary interface {
	Encode(data string) string
	Decode(msg string) (string, error)
	NewToken(role string) (accessToken string, userID string, err error)
	GetTokenForUser(userID, role string) (string, error)
	ValidateToken(accessToken string) (userID string, role string, err error)
}
