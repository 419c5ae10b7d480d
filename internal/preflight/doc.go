// Package preflight provides readiness checks for the external tools and
// filesystem paths asciireel depends on.
//
// The check command renders RunAll's results. Conversion does not gate on
// preflight: a missing tool still surfaces from the run itself as
// services.ErrToolUnavailable, so these checks are diagnostic only.
package preflight
