package store

import (
	"locgeo/pkg/locid"
)

// ScopeID names one geometry store file.
type ScopeID string

const (
	// ScopeGlobal holds every country-level root.
	ScopeGlobal ScopeID = "global"
	// ScopeGlobalEntities holds water bodies and cross-border entities.
	ScopeGlobalEntities ScopeID = "global_entities"
)

// ScopeFor routes a loc_id to the store that holds it: country roots go to
// the global file, subdivisions to their country's file, water bodies and
// global entities (and their descendants) to the cross-border file.
func ScopeFor(id string) ScopeID {
	return ScopeForHint(locid.Classify(id))
}

// ScopeForHint routes an already classified identifier.
func ScopeForHint(h locid.Hint) ScopeID {
	switch h.Class {
	case locid.ClassCountry:
		return ScopeGlobal
	case locid.ClassWater, locid.ClassGlobalEntity:
		return ScopeGlobalEntities
	}
	if h.Water != locid.WaterNone {
		return ScopeGlobalEntities
	}
	return ScopeID(h.Prefix)
}

// IsCountry reports whether the scope is a per-country file.
func (s ScopeID) IsCountry() bool {
	return s != ScopeGlobal && s != ScopeGlobalEntities
}
