package auth

import "strings"

// DevelopmentSecret is the insecure default signing secret for local runs.
const DevelopmentSecret = "zapflow-dev-secret-change-me"

// CheckSecret reports ErrMisconfiguredSecret when the secret is empty, or is
// the development default outside development and test environments.
func CheckSecret(secret, env string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrMisconfiguredSecret
	}
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "test":
		return nil
	}
	if secret == DevelopmentSecret {
		return ErrMisconfiguredSecret
	}
	return nil
}
