package ai

import (
	"errors"

	"github.com/kiranshivaraju/mealtrack/internal/ai/transport"
)

// Transport-level sentinels live in the transport package so provider packages
// can return them without importing ai.
var (
	ErrProviderUnavailable = transport.ErrProviderUnavailable
	ErrInferenceTimeout    = transport.ErrInferenceTimeout
	ErrInvalidResponse     = transport.ErrInvalidResponse
	ErrMissingAPIKey       = transport.ErrMissingAPIKey
)

var (
	ErrEmptyResult     = errors.New("ai provider returned no food items")
	ErrConsentRequired = errors.New("cloud analysis requires consent in profile settings")
	ErrInvalidMedia    = errors.New("invalid photo data")
	ErrMissingInput    = errors.New("analysis input has neither photo nor text")
)
