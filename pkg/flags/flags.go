// Package flags answers "what is flag K for caller C" for the router and the
// rest of the application.
//
// [Source] is the narrow contract the router depends on. [Provider] adds the
// number and listing lookups used by [Service]. Two providers ship
// here: [Static] (in-process values with per-caller overrides) and
// [RedisSource] (values kept in Redis hashes). Every implementation is safe
// for concurrent use and may fail; callers translate failures to defaults.
package flags

import (
	"context"
	"fmt"

	"github.com/surrealdb/dualstore/pkg/constants"
)

// Source resolves boolean flags.
type Source interface {
	GetBoolean(ctx context.Context, callerID, key string, def bool) (bool, error)
}

// Provider resolves boolean and numeric flags and lists them.
type Provider interface {
	Source
	GetNumber(ctx context.Context, callerID, key string, def float64) (float64, error)
	// All returns every flag visible to callerID, overrides applied.
	All(ctx context.Context, callerID string) (map[string]any, error)
}

// Defaults are the values used when no provider is configured or a lookup fails.
func Defaults() map[string]any {
	return map[string]any{
		constants.FlagNewFlow:                false,
		constants.FlagPremiumFeatures:        true,
		constants.FlagEnhancedProductDetails: true,
		constants.FlagBetaFeatures:           false,
		constants.FlagUseSecondary:           false,
		constants.FlagPremiumProductLimit:    float64(5),
	}
}

// TypeError reports a flag whose stored value has the wrong type.
type TypeError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("flag %q: want %s, got %T", e.Key, e.Want, e.Got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
