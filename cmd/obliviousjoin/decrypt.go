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

// runDecrypt is encrypt's inverse, reading back whatever `encrypt` wrote.
func runDecrypt(args []string) {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	inDir := fs.String("in", "", "directory of encrypted CSV tables")
	outDir := fs.String("out", "", "directory to write plaintext CSV tables")
	keyPath := fs.String("key", "obliviousjoin.key", "path to the hex-encoded 32-byte key used to encrypt")
	fs.Parse(args)

	if *inDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: obliviousjoin decrypt -in <dir> -out <dir> [-key <path>]")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not read key file %s: %v\n", *keyPath, err)
		os.Exit(1)
	}
	key, err := decodeKey(raw)
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

	fmt.Println("\nDecrypting tables using key:", *keyPath)
	fmt.Println("==========================================")

	processed, failed := 0, 0
files:
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		inPath := filepath.Join(*inDir, entry.Name())
		outPath := filepath.Join(*outDir, entry.Name())

		fmt.Printf("Processing: %s ... ", entry.Name())
		table, err := tableio.LoadEncryptedCSV(inPath)
		if err != nil {
			fmt.Printf("failed: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("%d rows ... ", table.Len())

		for i := range table.Tuples {
			if status := cryptor.Decrypt(&table.Tuples[i]); status != tuplecrypto.OK {
				fmt.Printf("failed: decrypt row %d: status=%v\n", i, status)
				failed++
				continue files
			}
		}
		if err := tableio.SaveCSV(outPath, table); err != nil {
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
