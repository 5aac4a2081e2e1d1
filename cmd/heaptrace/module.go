// module.go locates the heaptrace module source tree.
//
// The shim is built from this module's own cmd/libheaptrace package, so
// the tool has to find a checkout of the module: first the surrounding
// working tree (development), then the module cache via `go list -m`,
// which works when the current module requires heaptrace.
package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/mod/modfile"
)

// modulePath is the import path the located go.mod must declare. Walking
// up to just any go.mod would happily find the user's project instead.
const modulePath = "github.com/omrinahum/heaptrace"

// findModuleRoot returns the directory containing this module's go.mod.
//
// Strategy:
//  1. Walk up from the working directory looking for a go.mod whose
//     module path is ours (a source checkout).
//  2. Ask the Go toolchain for the module's directory, which resolves
//     through the module cache when the module in the working directory
//     lists heaptrace among its dependencies.
func findModuleRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting working directory")
	}

	dir := cwd
	for {
		if root, ok := checkGoMod(dir); ok {
			return root, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	out, err := exec.Command("go", "list", "-m", "-f", "{{.Dir}}", modulePath).Output()
	if err != nil {
		return "", errors.Newf(
			"cannot locate the %s module: run from a source checkout or add it to your module's dependencies",
			modulePath,
		)
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", errors.Newf("go list resolved %s to an empty directory", modulePath)
	}
	return root, nil
}

// checkGoMod reports whether dir holds this module's go.mod.
func checkGoMod(dir string) (string, bool) {
	goModPath := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return "", false
	}
	mf, err := modfile.Parse(goModPath, data, nil)
	if err != nil || mf.Module == nil {
		return "", false
	}
	if mf.Module.Mod.Path != modulePath {
		return "", false
	}
	return dir, true
}
