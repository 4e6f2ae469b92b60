package triplog

import "fmt"

// InputError reports a problem with the input that makes the run impossible:
// an unreadable file, a missing column or an unparsable cutoff date.
type InputError struct {
	Path   string // input file, empty for flag values
	Row    int    // 1-based file line, 0 if not row specific
	Column string
	Err    error
}

func (e *InputError) Error() string {
	switch {
	case e.Path != "" && e.Row > 0:
		return fmt.Sprintf("input %s line %d: %v", e.Path, e.Row, e.Err)
	case e.Path != "" && e.Column != "":
		return fmt.Sprintf("input %s column %q: %v", e.Path, e.Column, e.Err)
	case e.Path != "":
		return fmt.Sprintf("input %s: %v", e.Path, e.Err)
	case e.Column != "":
		return fmt.Sprintf("%s: %v", e.Column, e.Err)
	default:
		return fmt.Sprintf("input: %v", e.Err)
	}
}

func (e *InputError) Unwrap() error { return e.Err }
