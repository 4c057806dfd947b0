package utils

import (
	"time"

	"github.com/golang-jwt/jwt"
	"media-hub/infrastructure/logger"
)

func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// GenerateToken signs the payload with HS256, stamping the issue time so
// downstream consumers can age the token.
func GenerateToken(payload map[string]interface{}, secretKey string) (string, error) {
	claims := jwt.MapClaims{"iat": GetCurrentTime().Unix()}
	for k, v := range payload {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}
