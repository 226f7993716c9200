package resolver

import "errors"

// ErrNotFound is returned when no tier holds geometry for a loc_id.
// Callers render it as "no boundary available", never as an empty shape.
var ErrNotFound = errors.New("no geometry available")
