package ntlm

import (
	"fmt"
	"strings"

	"github.com/beekhof/exchange-sync/internal/domain"
)

// Credentials identify the account answering the challenge.
type Credentials struct {
	User     string
	Domain   string
	Password string
}

// ParseCredentials splits a "user@domain" login on its first '@'.
func ParseCredentials(login, password string) (Credentials, error) {
	user, dom, ok := strings.Cut(login, "@")
	if !ok || user == "" {
		return Credentials{}, fmt.Errorf("%w: %s", domain.ErrInvalidCredentialsFormat, login)
	}
	return Credentials{User: user, Domain: dom, Password: password}, nil
}

// String omits the password.
func (c Credentials) String() string {
	return c.User + "@" + c.Domain
}
