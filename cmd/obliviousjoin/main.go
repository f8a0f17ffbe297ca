// Command obliviousjoin is the CLI harness for the oblivious band-join
// engine (SPEC_FULL.md C13): run a join tree end to end, encrypt/decrypt
// CSV table directories (the Go counterpart of
// impl/src/app/tools/encrypt_tables.cpp), or serve the optional HTTP/WS
// job API. Subcommand dispatch and env-var configuration follow the
// teacher's cmd/engine/main.go style.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "encrypt":
		runEncrypt(os.Args[2:])
	case "decrypt":
		runDecrypt(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `obliviousjoin - oblivious multi-way band join engine

Usage:
  obliviousjoin run     -tree <path> [-out <path>] [-encrypted] [-debug]
  obliviousjoin encrypt -in <dir> -out <dir> [-key <path>]
  obliviousjoin decrypt -in <dir> -out <dir> [-key <path>]
  obliviousjoin serve   [env: DATABASE_URL, PORT, API_AUTH_TOKEN, ALLOWED_ORIGINS]`)
}
