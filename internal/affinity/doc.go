// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Package affinity implements the project recommendation core: pairwise
// match-strength bookkeeping, behavioural signal ingestion, and bounded
// related-project selection with a popularity fallback.
//
// # Architecture
//
// The package is built around three collaborators, all expressed as
// interfaces so the persistence layer can be swapped without touching the
// core (the DuckDB implementations live in internal/database):
//
//   - Store: durable unordered-pair -> strength mapping with atomic
//     reinforcement and deterministic top-links queries
//   - CounterStore: per-project monotonic view counters and the append-only
//     click event log
//   - Catalog: the authoritative project catalog (existence, active flag,
//     popularity ranking)
//
// On top of those sit the three engine components:
//
//   - Ingestor: turns click-through observations and administrative
//     corrections into bounded reinforcement of the Store
//   - Selector: answers "related projects" queries, padding sparse affinity
//     data from the most-viewed ranking
//   - Counters: records view and click telemetry
//
// # Consistency
//
// Reinforcement is an atomic read-modify-write on the store: two concurrent
// reinforcements of d1 and d2 must accumulate to a single reinforcement of
// d1+d2 (within clamping). Selection never recomputes strengths; it reads
// whatever the store has most recently committed.
//
// # Failure model
//
// Ingestion and counting are best-effort telemetry. Unknown project ids are
// classified recoverable (ErrUnknownProject) and dropped at the boundary;
// store outages surface as ErrStoreUnavailable and must never fail the
// user-facing page. Selection degrades to an empty result set behind a
// circuit breaker rather than propagating store errors.
//
// Aside from Prometheus instrumentation this package depends only on its
// collaborator interfaces, so it can be consumed as a library by any
// routing layer.
package affinity
