// Package apikey mints API keys. The raw key is returned once; only its
// bcrypt hash and lookup prefix are persisted.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/leaselens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Prefix starts every raw key.
	Prefix = "ll_"
	// PrefixLen is how many leading characters of a raw key are stored for lookup.
	PrefixLen = 8

	secretBytes = 24
)

var ErrEmptyName = errors.New("api key name is required")

// Generate creates a key named name with the given scopes.
func Generate(name string, scopes []string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrEmptyName
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}
	raw := Prefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	if scopes == nil {
		scopes = []string{}
	}
	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Matches reports whether raw is the key hashed in key.
func Matches(key *models.APIKey, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil
}
