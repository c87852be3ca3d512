package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Session service errors.
var (
	ErrInvalidEntryToken = errors.New("invalid entry token")
	ErrSessionNotFound   = errors.New("exam session not found")
	ErrShuttingDown      = errors.New("session service is shutting down")
)

// HashEntryToken hashes an exam entry token with the given bcrypt cost.
// An empty token yields an empty hash, which marks the exam as open.
func HashEntryToken(token string, cost int) (string, error) {
	if token == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	return string(hash), err
}

// CompareEntryToken checks token against the stored hash. Open exams accept any token.
func CompareEntryToken(hash, token string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidEntryToken
	}
	return nil
}
