// Package tools exposes the data services as named tools.
//
// A Tool declares its arguments and a Handler. The Registry dispatches
// calls by name, wrapping every handler with observe.Middleware so each
// call is traced, counted and logged. Results are column-ordered tables
// labelled in the caller's locale, together with the data source and any
// degradation warning.
package tools
