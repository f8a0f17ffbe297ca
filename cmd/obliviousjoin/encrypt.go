package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawblock/oblivious-band-join/internal/tableio"
	"github.com/rawblock/oblivious-band-join/internal/tuplecrypto"
)

// runEncrypt is the Go counterpart of tools/encrypt_tables.cpp: it walks
// every .csv file in an input directory and writes its encrypted form to
// an output directory, printing the same per-file progress/summary shape
// the original tool does. The original's key never leaves its SGX
// enclave; here it is a hex file on disk (see key.go).
func runEncrypt(args []string) {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	inDir := fs.String("in", "", "directory of plaintext CSV tables")
	outDir := fs.String("out", "", "directory to write encrypted CSV tables")
	keyPath := fs.String("key", "obliviousjoin.key", "path to the hex-encoded 32-byte key (created if absent)")
	fs.Parse(args)

	if *inDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: obliviousjoin encrypt -in <dir> -out <dir> [-key <path>]")
		os.Exit(1)
	}

	key, err := loadOrCreateKey(*keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cryptor := tuplecrypto.NewAESCryptor(key)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not create output directory: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(*inDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: input directory does not exist: %s\n", *inDir)
		os.Exit(1)
	}

	fmt.Println("\nEncrypting tables using key:", *keyPath)
	fmt.Println("==========================================")

	processed, failed := 0, 0
files:
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".csv")
		inPath := filepath.Join(*inDir, entry.Name())
		outPath := filepath.Join(*outDir, entry.Name())

		fmt.Printf("Processing: %s ... ", entry.Name())
		table, err := tableio.LoadCSV(inPath, name)
		if err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("%d rows ... ", table.Len())

		for i := range table.Tuples {
			if status := cryptor.Encrypt(&table.Tuples[i]); status != tuplecrypto.OK {
				fmt.Printf("failed: encrypt row %d: status=%v\n", i, status)
				failed++
				continue files
			}
		}
		if err := tableio.SaveEncryptedCSV(outPath, table); err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}
		fmt.Println("done")
		processed++
	}

	fmt.Println("\n==========================================")
	fmt.Println("Summary:")
	fmt.Printf("  Files processed: %d\n", processed)
	fmt.Printf("  Files failed:    %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}
