// Command marketcache serves cached market-data tools over HTTP and
// inspects the cache from the command line.
//
// Usage:
//
//	marketcache serve --config marketcache.yaml
//	marketcache call index_history --arg symbol=000300 --arg start_date=20240101
//	marketcache cache get index_history symbol=000300
//	marketcache cache clear
package main

import (
	"os"

	_ "time/tzdata"

	"github.com/jonwraymond/marketcache/cmd/marketcache/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
