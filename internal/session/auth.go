package session

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Compared against when the user is unknown so both paths cost one bcrypt run.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("posts-dummy-password"), bcrypt.DefaultCost)

// Authenticator checks passwords against a fixed set of bcrypt hashes.
type Authenticator struct {
	users map[string][]byte
}

func NewAuthenticator(users map[string]string) *Authenticator {
	a := &Authenticator{users: make(map[string][]byte, len(users))}
	for name, hash := range users {
		a.users[name] = []byte(hash)
	}
	return a
}

func (a *Authenticator) Verify(name, password string) error {
	hash, ok := a.users[name]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for POSTS_SESSION_USERS.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
