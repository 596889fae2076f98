// Package dataservice serves date-ranged market data from the cache,
// fetching from upstream only the days the cache does not cover.
//
// Each Get call runs the same sequence: look the entry up, compute the
// missing head and tail ranges, fetch those concurrently, merge them into
// the cached records, write the merged entry back with a TTL chosen by how
// recent the data is, and return the records inside the requested range.
// When the fetch fails and cached records exist, they are returned with a
// warning instead of an error.
//
// The specialized services (IndexService, TurnoverService, MarginService,
// MacroService) fix the resource names and parameters of each data set.
package dataservice
