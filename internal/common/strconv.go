package common

import "github.com/google/uuid"

// ParseUUIDParam parses a path or query identifier, reporting a validation error naming field.
func ParseUUIDParam(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, Validation("invalid "+field, map[string]any{field: "must be a UUID"})
	}
	return id, nil
}
