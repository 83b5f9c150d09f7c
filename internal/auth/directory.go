package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// StaticDirectory verifies passwords against a fixed set of bcrypt hashes.
type StaticDirectory struct {
	users map[string][]byte
}

var _ Directory = (*StaticDirectory)(nil)

// NewStaticDirectory creates a directory from username to bcrypt hash.
func NewStaticDirectory(hashes map[string]string) (*StaticDirectory, error) {
	users := make(map[string][]byte, len(hashes))
	for name, hash := range hashes {
		if name == "" {
			return nil, errors.New("auth: empty username")
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: invalid bcrypt hash for %q: %w", name, err)
		}
		users[name] = []byte(hash)
	}
	return &StaticDirectory{users: users}, nil
}

// Verify returns ErrInvalidCredentials unless password matches the stored
// hash for username. Unknown users cost the same bcrypt comparison as known ones.
func (d *StaticDirectory) Verify(ctx context.Context, username, password string) error {
	hash, ok := d.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash of password at bcrypt.DefaultCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.DefaultCost)
	})
	return dummy
}
