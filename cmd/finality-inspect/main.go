// finality-inspect dumps the keys stored under a keyspace prefix of an
// offline database. Run it against a copy, not a live server's db.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

func main() {
	var (
		dbPath string
		prefix string
	)
	flag.StringVar(&dbPath, "db", "", "pebble db path to inspect")
	flag.StringVar(&prefix, "prefix", "", "keyspace prefix (seeker:, conversion:, miracle:, post:, reply:, notif:)")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ScanKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}
