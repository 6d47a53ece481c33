// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import "errors"

// ErrNotFound is returned when a lookup matches no row, e.g. retrying a
// statement with no unresolved failure ledger entry. Callers on the
// administrative surface map it to a client error, not a system fault.
var ErrNotFound = errors.New("not found")
