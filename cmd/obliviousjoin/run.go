package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rawblock/oblivious-band-join/internal/engine"
	"github.com/rawblock/oblivious-band-join/internal/jointree"
	"github.com/rawblock/oblivious-band-join/internal/obltable"
	"github.com/rawblock/oblivious-band-join/internal/tableio"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
)

// runRun executes one join tree end to end and prints its metrics plus,
// optionally, its result rows and a debug snapshot catalog. This is the
// CLI counterpart of cmd/engine/main.go's startup sequencing style: log
// what's about to happen, run it, bail loud on the first fatal error.
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	treePath := fs.String("tree", "", "path to the tree spec JSON file")
	out := fs.String("out", "", "path to write the result as plaintext CSV (stdout if empty)")
	encrypted := fs.Bool("encrypted", false, "run ALL_ENCRYPTED instead of ALL_PLAINTEXT")
	debug := fs.Bool("debug", false, "capture a debug snapshot session")
	fs.Parse(args)

	if *treePath == "" {
		fmt.Fprintln(os.Stderr, "usage: obliviousjoin run -tree <path> [-out <path>] [-encrypted] [-debug]")
		os.Exit(1)
	}

	spec, err := loadTreeSpec(*treePath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	tree, err := buildTree(spec)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	var cryptor tuplecrypto.Cryptor
	if *encrypted {
		key, err := tuplecrypto.GenerateKey()
		if err != nil {
			log.Fatalf("FATAL: generate key: %v", err)
		}
		aes := tuplecrypto.NewAESCryptor(key)
		cryptor = aes
		if err := encryptTree(aes, tree); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		log.Println("Running in ALL_ENCRYPTED mode with an ephemeral in-memory key")
	}

	eng := engine.New(cryptor, 0)
	eng.OnPhase = func(pm engine.PhaseMetrics) {
		log.Printf("[run] phase %s: wall=%s crossings=%d high_water=%d",
			pm.Name, pm.WallTime, pm.BoundaryCrossings, pm.TableSizeHighWater)
	}

	var (
		result  *obltable.Table
		session *engine.DebugSession
	)
	if *debug {
		result, session, err = eng.ExecuteWithDebugSession(tree, "cli-run")
	} else {
		result, err = eng.Execute(tree)
	}
	if err != nil {
		log.Fatalf("FATAL: join failed: %v", err)
	}

	if cryptor != nil {
		for i := range result.Tuples {
			if status := cryptor.Decrypt(&result.Tuples[i]); status != tuplecrypto.OK {
				log.Fatalf("FATAL: decrypt result row %d: status=%v", i, status)
			}
		}
	}

	metrics := eng.Metrics()
	log.Printf("Join complete: %d result rows, %d phases, align_concat sort: %+v",
		result.Len(), len(metrics.Phases), metrics.AlignConcatSort)

	if session != nil {
		log.Printf("Debug session %s: %d snapshots written to %s", session.ID, len(session.Snapshots), session.Dir)
		for _, snap := range session.Snapshots {
			log.Printf("  %-28s node=%-12s rows=%-6d audit=%s", snap.Label, snap.Node, snap.Rows, snap.AuditHex)
		}
	}

	if *out == "" {
		printCSV(result)
		return
	}
	if err := tableio.SaveCSV(*out, result); err != nil {
		log.Fatalf("FATAL: write result: %v", err)
	}
	log.Printf("Result written to %s", *out)
}

func printCSV(t *obltable.Table) {
	fmt.Println(strings.Join(t.Schema.Columns, ","))
	n := len(t.Schema.Columns)
	for _, tup := range t.Tuples {
		row := make([]string, n)
		for i := 0; i < n; i++ {
			row[i] = fmt.Sprintf("%d", tup.Attributes[i])
		}
		fmt.Println(strings.Join(row, ","))
	}
}

// encryptTree encrypts every tuple of every node in tree in place, used
// to move a plaintext-loaded tree into ALL_ENCRYPTED mode before running
// the join under a cryptor.
func encryptTree(cryptor tuplecrypto.Cryptor, tree *jointree.Tree) error {
	for id := 0; id < tree.Len(); id++ {
		node := tree.Node(jointree.NodeID(id))
		for i := range node.Table.Tuples {
			if status := cryptor.Encrypt(&node.Table.Tuples[i]); status != tuplecrypto.OK {
				return fmt.Errorf("encrypt %s row %d: status=%v", node.Name, i, status)
			}
		}
	}
	return nil
}
