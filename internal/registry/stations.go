package registry

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/timmy/transitdw/internal/domain"
)

// StationID derives the stable 8-character key of a station from its name.
func StationID(name string) string {
	sum := md5.Sum([]byte(NormalizeStationName(name)))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}

var boroughWeights = []struct {
	Borough string
	Weight  float64
}{
	{"Manhattan", 0.25},
	{"Brooklyn", 0.30},
	{"Queens", 0.25},
	{"Bronx", 0.15},
	{"Staten Island", 0.05},
}

// buildStations adds the major stations and then seeded extra stations until
// total is reached.
func (r *Registry) buildStations(total int, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))
	r.stations = make([]domain.Station, 0, max(total, len(majorStations)))

	for _, spec := range majorStations {
		st := domain.Station{
			StationID:     StationID(spec.Name),
			StationName:   spec.Name,
			Borough:       spec.Borough,
			Latitude:      spec.Lat,
			Longitude:     spec.Lon,
			StructureType: structureType(rng, spec.Borough),
			ADAAccessible: rng.Float64() < 0.8,
		}
		r.fillIDs(&st)
		if r.addStation(st, strings.Split(spec.Lines, ",")) {
			r.major[st.StationID] = true
		}
	}

	for attempts := 0; len(r.stations) < total && attempts < total*50; attempts++ {
		borough := pickBorough(rng)
		box := boroughBoxes[borough]
		name := stationName(rng)
		if attempts%7 == 6 {
			name += " (" + borough + ")"
		}
		st := domain.Station{
			StationID:     StationID(name),
			StationName:   name,
			Borough:       borough,
			Latitude:      round6(box.MinLat + rng.Float64()*(box.MaxLat-box.MinLat)),
			Longitude:     round6(box.MinLon + rng.Float64()*(box.MaxLon-box.MinLon)),
			StructureType: structureType(rng, borough),
			ADAAccessible: rng.Float64() < 0.3,
		}
		r.fillIDs(&st)
		r.addStation(st, pickLines(rng, box.Lines))
	}
}

func (r *Registry) fillIDs(st *domain.Station) {
	n := len(r.stations) + 1
	st.StationComplexID = strconv.Itoa(n)
	st.GTFSStopID = fmt.Sprintf("S%03d", 100+n)
}

func pickBorough(rng *rand.Rand) string {
	x := rng.Float64()
	for _, b := range boroughWeights {
		if x < b.Weight {
			return b.Borough
		}
		x -= b.Weight
	}
	return boroughWeights[0].Borough
}

func stationName(rng *rand.Rand) string {
	street := streetTypes[rng.IntN(len(streetTypes))]
	if rng.IntN(2) == 0 {
		n := 1 + rng.IntN(240)
		dir := directions[rng.IntN(len(directions))]
		name := ordinal(n) + " " + street
		if dir != "" {
			name = dir + " " + name
		}
		return name
	}
	return placeNames[rng.IntN(len(placeNames))] + " " + street
}

// pickLines draws 1 to 4 distinct lines from pool, weighted toward fewer lines.
func pickLines(rng *rand.Rand, pool []string) []string {
	var n int
	switch x := rng.Float64(); {
	case x < 0.40:
		n = 1
	case x < 0.75:
		n = 2
	case x < 0.95:
		n = 3
	default:
		n = 4
	}
	n = min(n, len(pool))
	perm := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, p := range perm {
		out[i] = pool[p]
	}
	return out
}

func structureType(rng *rand.Rand, borough string) string {
	if borough == "Staten Island" {
		if rng.Float64() < 0.7 {
			return "At Grade"
		}
		return "Elevated"
	}
	x := rng.Float64()
	switch {
	case x < 0.6:
		return "Underground"
	case x < 0.9:
		return "Elevated"
	default:
		return "At Grade"
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
