//go:build ignore

// compare_snapshots reports identities whose totals differ between two
// snapshot directories.
//
//	go run scripts/compare_snapshots.go <dir1> <dir2>
package main

import (
	"fmt"
	"os"
	"slices"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/identity"
	"ChainSnap/internal/snapshot"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <dir1> <dir2>\n", os.Args[0])
		os.Exit(1)
	}

	totals1 := load(os.Args[1])
	totals2 := load(os.Args[2])

	fmt.Printf("DIR1 (%s): %d identities\n", os.Args[1], len(totals1))
	fmt.Printf("DIR2 (%s): %d identities\n", os.Args[2], len(totals2))

	ids := make([]identity.Identity, 0, len(totals1)+len(totals2))
	for id := range totals1 {
		ids = append(ids, id)
	}
	for id := range totals2 {
		if _, ok := totals1[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, identity.Compare)

	diffs := 0

	for _, id := range ids {
		a, inA := totals1[id]
		b, inB := totals2[id]

		switch {
		case !inA:
			fmt.Printf("  only in DIR2: %s = %s\n", id, b)
		case !inB:
			fmt.Printf("  only in DIR1: %s = %s\n", id, a)
		case a.Cmp(b) != 0:
			fmt.Printf("  differs: %s: %s vs %s\n", id, a, b)
		default:
			continue
		}
		diffs++
	}

	if diffs > 0 {
		fmt.Printf("\n%d differences\n", diffs)
		os.Exit(1)
	}

	fmt.Println("\nSnapshots match")
}

func load(dir string) map[identity.Identity]amount.Amount {
	store, err := snapshot.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dir, err)
		os.Exit(1)
	}

	totals, err := snapshot.LoadBalances(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", dir, err)
		os.Exit(1)
	}

	return totals
}
