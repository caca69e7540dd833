// Package apikey creates and checks bearer API keys. Only the bcrypt hash and
// a short lookup prefix are ever stored.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// Prefix marks mealtrack keys.
const Prefix = "mt_"

// PrefixLen is how many leading characters of a raw key are stored in clear
// for lookup.
const PrefixLen = 8

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

var validScopes = map[string]bool{ScopeRead: true, ScopeWrite: true, ScopeAdmin: true}

var randReader = rand.Reader

func randomHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := randReader.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// New generates a key for profileID. The raw key is returned once and cannot
// be recovered from the record.
func New(profileID, name string, scopes []string) (string, *models.APIKey, error) {
	if len(scopes) == 0 {
		scopes = []string{ScopeRead, ScopeWrite}
	}
	for _, s := range scopes {
		if !validScopes[s] {
			return "", nil, fmt.Errorf("unknown scope %q", s)
		}
	}

	secret, err := randomHex(24)
	if err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	raw := Prefix + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	return raw, &models.APIKey{
		ID:        uuid.New(),
		ProfileID: profileID,
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
