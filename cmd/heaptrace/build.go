// build.go implements the 'heaptrace build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// shimPackage is the import path of the c-shared preload shim.
const shimPackage = modulePath + "/cmd/libheaptrace"

// buildCommand implements 'heaptrace build': compile the preload shim to
// a shared object. The result is a normal ELF shared library usable with
// a bare LD_PRELOAD, independent of this tool.
func buildCommand(args []string) {
	out := "libheaptrace.so"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o requires a path")
				os.Exit(1)
			}
			i++
			out = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown build flag %q\n", args[i])
			os.Exit(1)
		}
	}

	path, err := buildShim(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Built %s\n", path)
}

// buildShim compiles the shim package with -buildmode=c-shared and
// returns the absolute path of the shared object.
//
// The build runs from the module root so the Go toolchain resolves the
// shim package against this module's go.mod rather than whatever module
// the user happens to be standing in. cgo is forced on: the shim is
// nothing but a cgo boundary.
func buildShim(out string) (string, error) {
	root, err := findModuleRoot()
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(out)
	if err != nil {
		return "", errors.Wrapf(err, "resolving output path %q", out)
	}

	cmd := exec.Command("go", "build",
		"-buildmode=c-shared",
		"-o", abs,
		shimPackage,
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "go build -buildmode=c-shared %s", shimPackage)
	}
	return abs, nil
}
