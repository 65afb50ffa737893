// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import "errors"

// Error taxonomy for the engine. Callers classify failures with errors.Is;
// implementations wrap these sentinels with operation context.
var (
	// ErrSelfPair rejects self-referential reinforcement: a project has no
	// affinity with itself.
	ErrSelfPair = errors.New("affinity: self-referential project pair")

	// ErrUnknownProject marks a project id the catalog does not recognize
	// (or one hidden by the active-only filter).
	ErrUnknownProject = errors.New("affinity: unknown project")

	// ErrStoreUnavailable wraps persistence-layer failures. Recoverable:
	// the enclosing request should degrade rather than fail.
	ErrStoreUnavailable = errors.New("affinity: store unavailable")

	// ErrMissingSession rejects click telemetry without a session id.
	ErrMissingSession = errors.New("affinity: missing session id")
)

// Recoverable reports whether err is a classified best-effort telemetry
// failure: one that is logged at the boundary and dropped instead of
// failing the enclosing user-facing request.
func Recoverable(err error) bool {
	return errors.Is(err, ErrUnknownProject) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrMissingSession)
}
