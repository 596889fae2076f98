// Package tradedate normalizes requested date ranges against the trading
// calendar and buckets timestamps by frequency.
//
// All functions except [Calendar] implementations are pure and safe for
// concurrent use.
package tradedate
