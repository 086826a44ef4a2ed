package incident

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/saferoute/internal/model"
)

// LoadXLSX reads incidents from the first sheet of a spreadsheet export.
// The first row is the header.
func LoadXLSX(path string, opts Options) ([]model.Incident, Stats, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "incident: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, Stats{}, eris.Errorf("incident: %s has no sheets", path)
	}
	return decode(&sheetReader{rows: f.Sheets[0].Rows}, opts)
}

// sheetReader adapts spreadsheet rows to csvutil.Reader.
type sheetReader struct {
	rows []*xlsx.Row
	pos  int
}

func (s *sheetReader) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells, nil
}
