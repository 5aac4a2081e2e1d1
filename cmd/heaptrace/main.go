// Package main implements the heaptrace CLI tool.
//
// The heaptrace tool provides dynamic memory-safety profiling for native
// binaries without modifying or recompiling them. It works by:
//
//  1. Building the preload shim (libheaptrace.so, -buildmode=c-shared)
//  2. Running the target with the shim inserted via LD_PRELOAD
//  3. Letting the preloaded tracker report leaks and invalid frees to
//     the target's standard error
//
// Usage:
//
//	heaptrace run ./program [args...]   # Profile a binary
//	heaptrace build [-o file]           # Build the preload shim
//
// The tool shells out to the standard Go toolchain for the shim build;
// no custom toolchain is involved.
//
// This is the CLI entry point for the standalone heaptrace tool.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("heaptrace version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`heaptrace - dynamic memory-safety profiler

USAGE:
    heaptrace <command> [arguments]

COMMANDS:
    run <binary> [args...]    Build the preload shim and run the target
                              under it; leak and corruption reports go to
                              the target's standard error
    build [-o file]           Build the preload shim shared object
                              (default: libheaptrace.so in the current
                              directory)
    version                   Print the tool version
    help                      Print this message

FLAGS (run):
    -no-stacks                Omit stack traces from reports
                              (sets HEAPTRACE_STACKTRACE=0)

EXAMPLES:
    heaptrace run ./myserver --port 8080
    heaptrace build -o /tmp/libheaptrace.so
    LD_PRELOAD=/tmp/libheaptrace.so ./myserver
`)
}
