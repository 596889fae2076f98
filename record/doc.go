// Package record defines the market-data Record, its date key and the
// merge rules used by the incremental cache.
//
// A Record maps a [Field] to a scalar value. Exactly one field carries the
// date key; [Record.Time] parses it and falls back to [MinTime] when the
// value is missing or unparseable, so such records sort first and never
// match a real date range.
//
// Field identifiers are a closed set of tagged constants. Upstream labels
// (localized or ASCII) are resolved once at the boundary by [Translate]
// and rendered back by [ToTable]; business logic only ever sees Fields.
package record
