package incident

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/model"
)

// LoadCSV reads incidents from a CSV stream with a header row. Unknown
// columns are ignored.
func LoadCSV(r io.Reader, opts Options) ([]model.Incident, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return decode(reader, opts)
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, opts Options) ([]model.Incident, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "incident: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return LoadCSV(f, opts)
}
