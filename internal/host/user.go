package host

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AuthMode selects how a user's credential is verified.
type AuthMode string

const (
	AuthStatic   AuthMode = "static"   // plaintext password material
	AuthHashed   AuthMode = "hashed"   // bcrypt hash
	AuthNone     AuthMode = "none"     // any credential accepted
	AuthDisabled AuthMode = "disabled" // login never succeeds
)

// Privileges is the read/write/execute triple of a user on its host.
type Privileges struct {
	Read    bool `json:"read"`
	Write   bool `json:"write"`
	Execute bool `json:"execute"`
}

// ParsePrivileges reads an "rwx"-style string; '-' or absence clears a bit.
func ParsePrivileges(s string) (Privileges, error) {
	var p Privileges
	for _, c := range s {
		switch c {
		case 'r':
			p.Read = true
		case 'w':
			p.Write = true
		case 'x':
			p.Execute = true
		case '-':
		default:
			return Privileges{}, fmt.Errorf("invalid privilege flag %q in %q", c, s)
		}
	}
	return p, nil
}

func (p Privileges) String() string {
	b := []byte("---")
	if p.Read {
		b[0] = 'r'
	}
	if p.Write {
		b[1] = 'w'
	}
	if p.Execute {
		b[2] = 'x'
	}
	return string(b)
}

// User is one account on a host.
type User struct {
	Key          string // internal storage key, never valid login input
	Login        string
	Privileges   Privileges
	Auth         AuthMode
	Password     string
	PasswordHash []byte
	Home         string
}

// Verify checks a credential against the user's auth mode.
func (u *User) Verify(credential string) bool {
	switch u.Auth {
	case AuthNone:
		return true
	case AuthStatic, "":
		return subtle.ConstantTimeCompare([]byte(u.Password), []byte(credential)) == 1
	case AuthHashed:
		if len(u.PasswordHash) == 0 {
			return false
		}
		return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(credential)) == nil
	default:
		return false
	}
}

// HashPassword produces bcrypt material for AuthHashed users.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
