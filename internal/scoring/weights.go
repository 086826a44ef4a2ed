package scoring

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights is an immutable crime-category weight table. Unknown categories
// weigh zero.
type Weights struct {
	table map[string]float64
}

// NewWeights copies table into a Weights value. Category names are
// upper-cased; negative weights are rejected.
func NewWeights(table map[string]float64) (Weights, error) {
	w := Weights{table: make(map[string]float64, len(table))}
	for cat, v := range table {
		cat = strings.ToUpper(strings.TrimSpace(cat))
		if cat == "" {
			return Weights{}, eris.New("scoring: empty category name")
		}
		if v < 0 {
			return Weights{}, eris.Errorf("scoring: negative weight %f for %q", v, cat)
		}
		w.table[cat] = v
	}
	return w, nil
}

// LoadWeights reads a YAML mapping of category to weight. An empty path
// yields DefaultWeights.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: read weights %s", path)
	}
	var table map[string]float64
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: parse weights %s", path)
	}
	return NewWeights(table)
}

// Weight returns the weight for category, or 0 if unknown.
func (w Weights) Weight(category string) float64 {
	return w.table[strings.ToUpper(strings.TrimSpace(category))]
}

// Categories lists the known categories in sorted order.
func (w Weights) Categories() []string {
	out := make([]string, 0, len(w.table))
	for cat := range w.table {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// DefaultWeights returns the built-in table.
func DefaultWeights() Weights {
	w, err := NewWeights(defaultTable)
	if err != nil {
		panic(err) // static table
	}
	return w
}

var defaultTable = map[string]float64{
	"HOMICIDE":          20,
	"KIDNAPPING":        10,
	"HUMAN TRAFFICKING": 10,

	"BATTERY": 2,
	"ASSAULT": 2,
	"ARSON":   2,

	"THEFT":               1,
	"BURGLARY":            1,
	"ROBBERY":             1,
	"CRIM SEXUAL ASSAULT": 1,

	"CRIMINAL DAMAGE":                   0.5,
	"WEAPONS VIOLATION":                 0.5,
	"OFFENSE INVOLVING CHILDREN":        0.5,
	"LIQUOR LAW VIOLATION":              0.5,
	"STALKING":                          0.5,
	"INTIMIDATION":                      0.5,
	"CONCEALED CARRY LICENSE VIOLATION": 0.5,
	"OBSCENITY":                         0.5,
	"PUBLIC INDECENCY":                  0.5,

	"DECEPTIVE PRACTICE":               0.1,
	"OTHER OFFENSE":                    0.1,
	"NARCOTICS":                        0.1,
	"MOTOR VEHICLE THEFT":              0.1,
	"CRIMINAL TRESPASS":                0.1,
	"PUBLIC PEACE VIOLATION":           0.1,
	"INTERFERENCE WITH PUBLIC OFFICER": 0.1,
	"SEX OFFENSE":                      0.1,
	"PROSTITUTION":                     0.1,
	"GAMBLING":                         0.1,
	"OTHER NARCOTIC VIOLATION":         0.1,

	"NON-CRIMINAL":                     0,
	"NON-CRIMINAL (SUBJECT SPECIFIED)": 0,
}
