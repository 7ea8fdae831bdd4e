// Package segment turns an ordered transcript into bounded, overlapping
// analysis windows. The window plan is the unit of work for policy analysis
// and the basis for canonical time ownership in the final report.
package segment
