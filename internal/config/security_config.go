package config

import "strconv"

type SecurityConfig interface {
	GetTokenSigningSecret() string
	GetCookieSigningSecret() string
	GetLoginRateLimitEnabled() bool
	GetLoginAttemptsPerMinute() int
	GetLoginAttemptBurst() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetTokenSigningSecret() string {
	return GetEnv("TOKEN_SIGNING_SECRET", "another_secret_key")
}

func (Security) GetCookieSigningSecret() string {
	return GetEnv("COOKIE_SIGNING_SECRET", "cookie_secret_key")
}

func (Security) GetLoginRateLimitEnabled() bool {
	enabled, err := strconv.ParseBool(GetEnv("LOGIN_RATE_LIMIT", "false"))
	if err != nil {
		return false
	}
	return enabled
}

func (Security) GetLoginAttemptsPerMinute() int {
	return getEnvInt("LOGIN_ATTEMPTS_PER_MINUTE", 10)
}

func (Security) GetLoginAttemptBurst() int {
	return getEnvInt("LOGIN_ATTEMPT_BURST", 5)
}

func getEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(GetEnv(envVar, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
