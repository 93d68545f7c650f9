//nolint:gochecknoinits,dogsled
package test

import (
	"os"
	"path/filepath"
	"runtime"
)

// ProjectRoot returns the absolute path of the module root.
func ProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..")
}

// ConfigTestRootPath - go test runs with the package folder as working directory. This changes it
// to the module root so fixtures (migrations folders, config files) can be referenced from there.
func ConfigTestRootPath() {
	if err := os.Chdir(ProjectRoot()); err != nil {
		panic(err)
	}
}
