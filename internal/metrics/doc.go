// Package metrics scores a control trajectory. The CostCalculator is the
// scalar objective of the optimizer; the Metric implementations summarize
// a run for reports.
package metrics
