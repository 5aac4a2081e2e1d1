// run.go implements the 'heaptrace run' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// runCommand implements 'heaptrace run': build the shim to a temporary
// location, execute the target under LD_PRELOAD, forward stdio and exit
// with the target's exit code.
//
// Flow:
//  1. Parse flags and split off the target binary and its arguments
//  2. Build the shim shared object into a temp directory
//  3. Exec the target with LD_PRELOAD (and any report flags) in its
//     environment
//  4. Return the target's exit code
func runCommand(args []string) {
	noStacks := false
	for len(args) > 0 && args[0] == "-no-stacks" {
		noStacks = true
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no target binary specified")
		os.Exit(1)
	}
	target, targetArgs := args[0], args[1:]

	tempDir, err := os.MkdirTemp("", "heaptrace-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Best effort cleanup, done by hand: os.Exit skips deferred calls.
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	shim, err := buildShim(filepath.Join(tempDir, "libheaptrace.so"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	code := executeTarget(target, targetArgs, shim, noStacks)
	cleanup()
	os.Exit(code)
}

// executeTarget runs the binary with the shim preloaded and returns its
// exit code. Stdio is inherited so the tracker's reports interleave with
// the target's own output exactly as they would under a bare LD_PRELOAD.
func executeTarget(target string, args []string, shim string, noStacks bool) int {
	cmd := exec.Command(target, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	env := append(os.Environ(), "LD_PRELOAD="+shim)
	if noStacks {
		env = append(env, "HEAPTRACE_STACKTRACE=0")
	}
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
