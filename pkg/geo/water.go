package geo

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Profile selects the water partition order used by Pass 3.
type Profile string

const (
	ProfileGlobal    Profile = "global"
	ProfileUSA       Profile = "usa"
	ProfileCanada    Profile = "canada"
	ProfileAustralia Profile = "australia"
)

// ParseProfile maps a configuration string to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProfileGlobal, nil
	case ProfileGlobal, ProfileUSA, ProfileCanada, ProfileAustralia:
		return p, nil
	}
	return "", fmt.Errorf("unknown geocoder profile %q", s)
}

// WaterBody is one cell of the fixed water partition.
type WaterBody struct {
	LocID string
	Name  string
	Boxes []orb.Bound
}

// Contains reports whether p falls in any of the body's boxes.
func (w WaterBody) Contains(p orb.Point) bool {
	for _, b := range w.Boxes {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

func box(minLon, minLat, maxLon, maxLat float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}
}

// Seas and lakes. Checked before oceans, in profile order.
var (
	GulfOfMexico   = WaterBody{"XSG", "Gulf of Mexico", []orb.Bound{box(-98, 18, -81, 31)}}
	CaribbeanSea   = WaterBody{"XSC", "Caribbean Sea", []orb.Bound{box(-89, 9, -60, 22)}}
	HudsonBay      = WaterBody{"XSH", "Hudson Bay", []orb.Bound{box(-95, 51, -76, 66)}}
	LabradorSea    = WaterBody{"XSL", "Labrador Sea", []orb.Bound{box(-64, 53, -44, 66)}}
	GulfOfAlaska   = WaterBody{"XSA", "Gulf of Alaska", []orb.Bound{box(-157, 52, -130, 61)}}
	BeringSea      = WaterBody{"XSB", "Bering Sea", []orb.Bound{box(-180, 52, -157, 66), box(162, 52, 180, 66)}}
	LakeSuperior   = WaterBody{"XLS", "Lake Superior", []orb.Bound{box(-92.2, 46.4, -84.3, 49.0)}}
	LakeMichigan   = WaterBody{"XLM", "Lake Michigan", []orb.Bound{box(-88.1, 41.6, -84.7, 46.1)}}
	LakeHuron      = WaterBody{"XLH", "Lake Huron", []orb.Bound{box(-84.7, 43.0, -79.6, 46.4)}}
	LakeErie       = WaterBody{"XLE", "Lake Erie", []orb.Bound{box(-83.5, 41.3, -78.8, 43.0)}}
	LakeOntario    = WaterBody{"XLO", "Lake Ontario", []orb.Bound{box(-79.9, 43.1, -75.9, 44.3)}}
	TasmanSea      = WaterBody{"XST", "Tasman Sea", []orb.Bound{box(147, -47, 175, -30)}}
	CoralSea       = WaterBody{"XSR", "Coral Sea", []orb.Bound{box(142, -30, 170, -9)}}
	TimorSea       = WaterBody{"XSI", "Timor Sea", []orb.Bound{box(122, -15, 130, -8)}}
	ArafuraSea     = WaterBody{"XSF", "Arafura Sea", []orb.Bound{box(130, -12, 142, -8)}}
	GreatAustBight = WaterBody{"XSY", "Great Australian Bight", []orb.Bound{box(115, -40, 141, -31)}}
	Mediterranean  = WaterBody{"XSM", "Mediterranean Sea", []orb.Bound{box(-6, 30, 36, 46)}}
	NorthSea       = WaterBody{"XSN", "North Sea", []orb.Bound{box(-4, 51, 9, 61)}}
	BlackSea       = WaterBody{"XSK", "Black Sea", []orb.Bound{box(27, 40, 42, 47)}}
)

// Oceans. Together they cover every valid coordinate.
var (
	ArcticOcean   = WaterBody{"XON", "Arctic Ocean", []orb.Bound{box(-180, 66.5, 180, 90)}}
	SouthernOcean = WaterBody{"XOS", "Southern Ocean", []orb.Bound{box(-180, -90, 180, -60)}}
	AtlanticOcean = WaterBody{"XOA", "Atlantic Ocean", []orb.Bound{box(-100, 8, 20, 66.5), box(-70, -60, 20, 8)}}
	IndianOcean   = WaterBody{"XOI", "Indian Ocean", []orb.Bound{box(20, -60, 100, 31), box(100, -60, 147, -8)}}
	PacificOcean  = WaterBody{"XOP", "Pacific Ocean", []orb.Bound{box(-180, -60, 180, 66.5)}}
)

var oceans = []WaterBody{ArcticOcean, SouthernOcean, AtlanticOcean, IndianOcean, PacificOcean}

// WaterTable is an ordered partition per profile. The first body that
// contains the point wins.
type WaterTable map[Profile][]WaterBody

// DefaultWaterTable returns the built-in partitions.
func DefaultWaterTable() WaterTable {
	greatLakes := []WaterBody{LakeSuperior, LakeMichigan, LakeHuron, LakeErie, LakeOntario}
	join := func(parts ...[]WaterBody) []WaterBody {
		var out []WaterBody
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	return WaterTable{
		ProfileUSA: join(
			[]WaterBody{GulfOfMexico, CaribbeanSea}, greatLakes,
			[]WaterBody{GulfOfAlaska, BeringSea}, oceans),
		ProfileCanada: join(
			[]WaterBody{HudsonBay, LabradorSea}, greatLakes,
			[]WaterBody{GulfOfAlaska, BeringSea}, oceans),
		ProfileAustralia: join(
			[]WaterBody{TasmanSea, CoralSea, TimorSea, ArafuraSea, GreatAustBight}, oceans),
		ProfileGlobal: join(
			[]WaterBody{GulfOfMexico, CaribbeanSea, HudsonBay, LabradorSea}, greatLakes,
			[]WaterBody{GulfOfAlaska, BeringSea, Mediterranean, NorthSea, BlackSea,
				TasmanSea, CoralSea, TimorSea, ArafuraSea, GreatAustBight}, oceans),
	}
}

// Assign returns the water body for p under profile. Unknown profiles use
// the global partition.
func (t WaterTable) Assign(p orb.Point, profile Profile) (WaterBody, bool) {
	bodies, ok := t[profile]
	if !ok {
		bodies = t[ProfileGlobal]
	}
	for _, w := range bodies {
		if w.Contains(p) {
			return w, true
		}
	}
	return WaterBody{}, false
}

// Bodies returns every distinct water body in the table, in first-seen order.
func (t WaterTable) Bodies() []WaterBody {
	seen := make(map[string]bool)
	var out []WaterBody
	for _, profile := range []Profile{ProfileGlobal, ProfileUSA, ProfileCanada, ProfileAustralia} {
		for _, w := range t[profile] {
			if !seen[w.LocID] {
				seen[w.LocID] = true
				out = append(out, w)
			}
		}
	}
	return out
}
