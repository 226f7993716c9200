package locid

import "strings"

// EntityType is the closed set of record kinds a GeometryRecord can carry.
type EntityType int

const (
	EntityOther EntityType = iota
	EntityAdmin
	EntityDistrict
	EntityCensus
	EntityPostal
	EntityRiver
	EntityHydro
	EntityWatershed
	EntityOcean
	EntitySea
	EntityLake
	EntityClimate
	EntityPolitical
	EntityEconomic
	EntityTribal
	EntityHurricane
	EntityWildfire
	EntityEarthquake
	EntityTsunami
	EntityEruption
	EntityTornado
	EntityFlood
	EntityInformal
)

var entityNames = [...]string{
	EntityOther:      "other",
	EntityAdmin:      "admin",
	EntityDistrict:   "district",
	EntityCensus:     "census",
	EntityPostal:     "postal",
	EntityRiver:      "river",
	EntityHydro:      "hydro",
	EntityWatershed:  "watershed",
	EntityOcean:      "ocean",
	EntitySea:        "sea",
	EntityLake:       "lake",
	EntityClimate:    "climate",
	EntityPolitical:  "political",
	EntityEconomic:   "economic",
	EntityTribal:     "tribal",
	EntityHurricane:  "hurricane",
	EntityWildfire:   "wildfire",
	EntityEarthquake: "earthquake",
	EntityTsunami:    "tsunami",
	EntityEruption:   "eruption",
	EntityTornado:    "tornado",
	EntityFlood:      "flood",
	EntityInformal:   "informal",
}

func (t EntityType) String() string {
	if t < 0 || int(t) >= len(entityNames) {
		return entityNames[EntityOther]
	}
	return entityNames[t]
}

// ParseEntityType maps a stored type string onto the closed set.
// Unknown strings map to EntityOther with ok=false so importers can log them.
func ParseEntityType(s string) (EntityType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EntityAdmin, true
	}
	for i, name := range entityNames {
		if name == s {
			return EntityType(i), true
		}
	}
	return EntityOther, false
}

// IsDisaster reports whether the type is an event perimeter.
func (t EntityType) IsDisaster() bool {
	switch t {
	case EntityHurricane, EntityWildfire, EntityEarthquake, EntityTsunami,
		EntityEruption, EntityTornado, EntityFlood:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (t EntityType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EntityType) UnmarshalText(b []byte) error {
	*t, _ = ParseEntityType(string(b))
	return nil
}
