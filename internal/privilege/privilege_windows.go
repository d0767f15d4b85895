//go:build windows

package privilege

import "golang.org/x/sys/windows"

// Elevated reports whether the process token carries Administrator
// elevation. devcon refuses disable/enable without it.
func Elevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
