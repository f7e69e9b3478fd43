// Package handlers contains the HTTP handlers for the Content Pilot API.
// Each handler declares the narrow service interface it needs and mounts
// its routes through RegisterRoutes.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"contentpilot/internal/types"
)

// platformParam reads the platform query parameter. An empty value is
// allowed only when required is false.
func platformParam(r *http.Request, required bool) (types.Platform, error) {
	raw := r.URL.Query().Get("platform")
	if raw == "" {
		if required {
			return "", types.NewAppError(types.ErrCodeValidationMissingField, "platform is required", nil)
		}
		return "", nil
	}
	p := types.Platform(raw)
	if !p.IsValid() {
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPlatform,
			fmt.Sprintf("unknown platform %q", raw), nil,
			map[string]any{"platform": raw})
	}
	return p, nil
}

// intParam reads an integer query parameter bounded by [min, max]. A missing
// value yields def.
func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidCount,
			fmt.Sprintf("%s must be a number between %d and %d", name, min, max), nil,
			map[string]any{name: raw})
	}
	return n, nil
}
