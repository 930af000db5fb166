// snaptool inspects document snapshot files: section layout, content
// digest, and integrity verification.
//
// Usage:
//
//	snaptool info <file>    print the section table and counts
//	snaptool digest <file>  print the content digest of the snapshot
//	snaptool verify <file>  parse, apply and re-digest; fail on mismatch
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/ewdc/engine/internal/digest"
	"github.com/ewdc/engine/internal/document"
	"github.com/ewdc/engine/internal/snapshot"
	"github.com/ewdc/engine/internal/text"
)

func main() {
	if len(os.Args) != 3 {
		usage()
		os.Exit(2)
	}
	cmd, path := os.Args[1], os.Args[2]

	data, err := os.ReadFile(path)
	if err != nil {
		fatal("read %s: %v", path, err)
	}

	switch cmd {
	case "info":
		info(path, data)
	case "digest":
		printDigest(data)
	case "verify":
		verify(data)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: snaptool {info|digest|verify} <file>")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "snaptool: "+format+"\n", args...)
	os.Exit(1)
}

// restore parses the snapshot and applies it to fresh stores.
func restore(data []byte) (*document.Store, *text.Store, *document.Selection) {
	snap, code := snapshot.Parse(data)
	if code.Err() != nil {
		fatal("parse snapshot: %v", code.Err())
	}
	store := document.NewStore()
	texts := text.NewStore()
	sel := document.NewSelection()
	snapshot.Apply(snap, store, texts, sel)
	return store, texts, sel
}

func info(path string, data []byte) {
	store, texts, sel := restore(data)
	sum := blake2b.Sum256(data)

	fmt.Printf("file:      %s\n", path)
	fmt.Printf("size:      %d bytes\n", len(data))
	fmt.Printf("blake2b:   %x\n", sum[:8])
	fmt.Printf("entities:  %d\n", store.EntityCount())
	fmt.Printf("layers:    %d\n", store.LayerStore.Count())
	fmt.Printf("texts:     %d\n", texts.Count())
	fmt.Printf("selected:  %d\n", sel.Count())
	fmt.Printf("draworder: %d\n", len(store.DrawOrder))

	kinds := map[document.EntityKind]int{}
	for _, id := range store.SortedEntityIDs() {
		kinds[store.KindOf(id)]++
	}
	for k := document.KindRect; k <= document.KindText; k++ {
		if kinds[k] > 0 {
			fmt.Printf("  %-9s %d\n", k.String()+":", kinds[k])
		}
	}
}

func printDigest(data []byte) {
	store, texts, sel := restore(data)
	d := digest.Compute(store, texts, sel)
	fmt.Printf("%08x%08x\n", d.Hi, d.Lo)
}

// verify applies the snapshot, rebuilds a snapshot from the restored
// state and checks the two digests agree. Catches both corrupt inputs
// and build/apply asymmetries.
func verify(data []byte) {
	store, texts, sel := restore(data)
	first := digest.Compute(store, texts, sel)

	rebuilt := snapshot.Build(store, texts, sel, nil)
	store2, texts2, sel2 := restore(rebuilt)
	second := digest.Compute(store2, texts2, sel2)

	if first != second {
		fatal("digest mismatch: %016x vs %016x", first.U64(), second.U64())
	}
	fmt.Printf("ok %08x%08x\n", first.Hi, first.Lo)
}
