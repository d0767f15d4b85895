package command

import (
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Resolve turns a tool path or bare name into an absolute executable
// path. A value containing a path separator must point at an existing
// regular file; a bare name is looked up on PATH.
func Resolve(path string) (string, error) {
	if strings.ContainsAny(path, `/\`) {
		info, err := os.Stat(path)
		if err != nil {
			return "", errors.Wrapf(err, "resolve %s", path)
		}
		if info.IsDir() {
			return "", errors.Errorf("resolve %s: is a directory", path)
		}
		return path, nil
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", path)
	}
	return resolved, nil
}
