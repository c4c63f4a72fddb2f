// Package visualize renders trajectory artifacts for review: a PNG plan
// view of every track and an HTML speed chart.
package visualize
