package broker

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mvpdauth/internal/models"
)

// checkSoftwareStatement rejects a statement that is a JWT whose exp has
// passed. The signature is not verified and anything that does not parse
// as a JWT is left to the broker.
func checkSoftwareStatement(statement string, now time.Time) error {
	if statement == "" {
		return &models.ConfigurationRequiredError{Reason: "no software statement configured"}
	}
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(statement, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(now) {
		return &models.ConfigurationRequiredError{Reason: "software statement expired at " + claims.ExpiresAt.Time.UTC().Format(time.RFC3339)}
	}
	return nil
}

func isConfigError(err error) bool {
	var cfgErr *models.ConfigurationRequiredError
	return errors.As(err, &cfgErr)
}
