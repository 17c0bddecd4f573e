// This program watches a blockfeed service, keeping a local cached view of
// the feed and printing it as new events arrive.
package main

import "github.com/ardanlabs/blockfeed/app/tooling/watcher/cmd"

func main() {
	cmd.Execute()
}
