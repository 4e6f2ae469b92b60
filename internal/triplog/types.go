package triplog

import "time"

// Trip is one journey from the travel-log export
type Trip struct {
	Row    int // 0-based data row, used as tie-breaker for equal dates
	ID     string
	Type   string
	Start  time.Time
	Path   string
	Fields []string // original record, written back with a new path
}

// Log is a parsed export
type Log struct {
	Path    string
	Header  []string
	Index   Index
	Trips    []Trip
	Rejected []Rejected // rows dropped because of an unparsable date
}

// Rejected is a row left out of a Log because its date could not be parsed
type Rejected struct {
	Line int // 1-based file line
	ID   string
	Type string
	Date string
}

// RejectedFor returns the rejected rows whose type is one of types.
func (l *Log) RejectedFor(types []string) []Rejected {
	var out []Rejected
	for _, r := range l.Rejected {
		for _, t := range types {
			if r.Type == t {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Index holds the resolved positions of the columns the pipeline uses.
// ID is -1 when the export has no id column.
type Index struct {
	ID   int
	Type int
	Date int
	Path int
}
