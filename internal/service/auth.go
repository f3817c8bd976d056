package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/upload"
)

// Login compares the pair with the stored plaintext credential. Usernames are case-sensitive.
func (s *fileService) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return upload.NewValidationError("credentials", "username and password are required")
	}
	if s.creds == nil {
		return ErrInvalidCredentials
	}

	cred, err := s.creds.FindCredential(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("find credential: %w: %v", ErrRepository, err)
	}
	if subtle.ConstantTimeCompare([]byte(cred.Password), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// SeedCredential stores the initial login unless the username already exists.
// It does nothing when either value is empty.
func SeedCredential(ctx context.Context, repo repository.CredentialRepository, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	if err := repo.EnsureCredential(ctx, model.Credential{Username: username, Password: password}); err != nil {
		return false, fmt.Errorf("seed credential: %w", err)
	}
	return true, nil
}
