// Package area maps community-area names to the numeric codes incident
// records carry.
package area

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Registry is an immutable two-way lookup between area names and codes.
type Registry struct {
	byName map[string]int
	byCode map[int]string
	codes  []int
}

// NewRegistry builds a registry from a name → code table. Names are
// normalized to upper case; duplicate codes are rejected.
func NewRegistry(table map[string]int) (Registry, error) {
	r := Registry{
		byName: make(map[string]int, len(table)),
		byCode: make(map[int]string, len(table)),
	}
	for name, code := range table {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			return Registry{}, eris.New("area: empty area name")
		}
		if code <= 0 {
			return Registry{}, eris.Errorf("area: invalid code %d for %q", code, name)
		}
		if prev, ok := r.byCode[code]; ok {
			return Registry{}, eris.Errorf("area: code %d assigned to both %q and %q", code, prev, name)
		}
		r.byName[name] = code
		r.byCode[code] = name
		r.codes = append(r.codes, code)
	}
	sort.Ints(r.codes)
	return r, nil
}

// Load reads a YAML mapping of area name to code. An empty path yields the
// built-in Chicago table.
func Load(path string) (Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, eris.Wrapf(err, "area: read %s", path)
	}
	var table map[string]int
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Registry{}, eris.Wrapf(err, "area: parse %s", path)
	}
	return NewRegistry(table)
}

// Code returns the code for a name (case-insensitive).
func (r Registry) Code(name string) (int, bool) {
	code, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	return code, ok
}

// Name returns the name for a code.
func (r Registry) Name(code int) (string, bool) {
	name, ok := r.byCode[code]
	return name, ok
}

// Codes returns every code in ascending order.
func (r Registry) Codes() []int {
	out := make([]int, len(r.codes))
	copy(out, r.codes)
	return out
}

// Len returns the number of areas.
func (r Registry) Len() int { return len(r.codes) }

// Slug returns a file-name friendly form of the area name, e.g. "HYDE_PARK".
func (r Registry) Slug(code int) (string, bool) {
	name, ok := r.byCode[code]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(name, " ", "_"), true
}

// Default returns the 77 Chicago community areas.
func Default() Registry {
	r, err := NewRegistry(chicago)
	if err != nil {
		panic(err) // static table
	}
	return r
}

var chicago = map[string]int{
	"ROGERS PARK": 1, "WEST RIDGE": 2, "UPTOWN": 3, "LINCOLN SQUARE": 4,
	"NORTH CENTER": 5, "LAKE VIEW": 6, "LINCOLN PARK": 7, "NEAR NORTH SIDE": 8,
	"EDISON PARK": 9, "NORWOOD PARK": 10, "JEFFERSON PARK": 11, "FOREST GLEN": 12,
	"NORTH PARK": 13, "ALBANY PARK": 14, "PORTAGE PARK": 15, "IRVING PARK": 16,
	"DUNNING": 17, "MONTCLARE": 18, "BELMONT CRAGIN": 19, "HERMOSA": 20,
	"AVONDALE": 21, "LOGAN SQUARE": 22, "HUMBOLDT PARK": 23, "WEST TOWN": 24,
	"AUSTIN": 25, "WEST GARFIELD PARK": 26, "EAST GARFIELD PARK": 27, "NEAR WEST SIDE": 28,
	"NORTH LAWNDALE": 29, "SOUTH LAWNDALE": 30, "LOWER WEST SIDE": 31, "LOOP": 32,
	"NEAR SOUTH SIDE": 33, "ARMOUR SQUARE": 34, "DOUGLAS": 35, "OAKLAND": 36,
	"FULLER PARK": 37, "GRAND BOULEVARD": 38, "KENWOOD": 39, "WASHINGTON PARK": 40,
	"HYDE PARK": 41, "WOODLAWN": 42, "SOUTH SHORE": 43, "CHATHAM": 44,
	"AVALON PARK": 45, "SOUTH CHICAGO": 46, "BURNSIDE": 47, "CALUMET HEIGHTS": 48,
	"ROSELAND": 49, "PULLMAN": 50, "SOUTH DEERING": 51, "EAST SIDE": 52,
	"WEST PULLMAN": 53, "RIVERDALE": 54, "HEGEWISCH": 55, "GARFIELD RIDGE": 56,
	"ARCHER HEIGHTS": 57, "BRIGHTON PARK": 58, "MCKINLEY PARK": 59, "BRIDGEPORT": 60,
	"NEW CITY": 61, "WEST ELSDON": 62, "GAGE PARK": 63, "CLEARING": 64,
	"WEST LAWN": 65, "CHICAGO LAWN": 66, "WEST ENGLEWOOD": 67, "ENGLEWOOD": 68,
	"GREATER GRAND CROSSING": 69, "ASHBURN": 70, "AUBURN GRESHAM": 71, "BEVERLY": 72,
	"WASHINGTON HEIGHTS": 73, "MOUNT GREENWOOD": 74, "MORGAN PARK": 75, "OHARE": 76,
	"EDGEWATER": 77,
}
