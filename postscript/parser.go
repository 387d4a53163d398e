// Package postscript derives billing data from a page-description payload.
//
// The derivation is pure: the same payload always yields the same page
// count, duplex flag, and cost.
package postscript

import "strings"

const (
	// pageMarker delimits the start of a new page in the payload.
	pageMarker = "%%Page:"
	// duplexMarker indicates double-sided printing was requested.
	duplexMarker = "/Duplex true"
)

// PageCount returns the number of page-boundary markers in the payload.
func PageCount(ps string) int {
	return strings.Count(ps, pageMarker)
}

// IsDuplex reports whether the payload requests duplex printing.
func IsDuplex(ps string) bool {
	return strings.Contains(ps, duplexMarker)
}

// Cost computes the billing charge for the payload: one unit per page, or
// one unit per physical sheet when duplex (page pairs rounded up for an odd
// trailing page). Always non-negative.
func Cost(ps string) int {
	pages := PageCount(ps)
	if IsDuplex(ps) {
		return (pages + 1) / 2
	}
	return pages
}

// Analysis bundles the derived fields for logging and statistics.
type Analysis struct {
	Pages  int
	Duplex bool
	Cost   int
}

// Analyze derives all billing data from the payload in one pass over the
// markers.
func Analyze(ps string) Analysis {
	a := Analysis{
		Pages:  PageCount(ps),
		Duplex: IsDuplex(ps),
	}
	if a.Duplex {
		a.Cost = (a.Pages + 1) / 2
	} else {
		a.Cost = a.Pages
	}
	return a
}
