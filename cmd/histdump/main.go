// histdump prints recent batch outcomes from the history index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"netfarm/internal/persistence/indexdb"
)

func main() {
	var (
		dbPath = flag.String("db", "./data/index.db", "path to index.db")
		limit  = flag.Int("n", 50, "max rows to print")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[histdump] ", log.LstdFlags)

	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		logger.Fatalf("open %s: %v", *dbPath, err)
	}
	defer idx.Close()

	rows, err := idx.RecentBatches(context.Background(), *limit)
	if err != nil {
		logger.Fatalf("query: %v", err)
	}

	for _, b := range rows {
		fmt.Printf("%s  %-8s %-6s h=%-5d g=%-5d w=%-5d %-8s %s\n",
			b.StartedAt, b.Target, b.Kind,
			b.HackThreads, b.GrowThreads, b.WeakenThreads,
			b.Outcome, b.ID)
	}
}
