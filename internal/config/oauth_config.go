package config

import "time"

type OAuthConfig interface {
	GetAuthCodeExpiry() time.Duration
	GetAccessTokenExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthCodeExpiry() time.Duration {
	return 10 * time.Minute
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}
