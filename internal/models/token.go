package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Session is what user gets on login or refresh
type Session struct {
	Pair TokenPair
	User User

	// Subject the access token was issued for
	Subject string
}
