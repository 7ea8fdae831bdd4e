// Package report assembles per-segment verdicts into the timeline-ordered
// analysis report. Overlapping segment regions are attributed to the earlier
// segment, and category disagreement across an overlap escalates the owning
// entry to PolicyConcern so possible issues surface rather than being
// silently resolved.
package report
