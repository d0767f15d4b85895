package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/device-tools/adb-rescue/internal/devcon"
)

// profileFile is the parsed YAML structure for a device profile:
//
//	device_name: Android Composite ADB Interface
//	vendor_ids: ["18D1", "04E8"]
type profileFile struct {
	DeviceName string   `yaml:"device_name"`
	VendorIDs  []string `yaml:"vendor_ids"`
}

var vendorIDFormat = regexp.MustCompile(`^[0-9A-F]{4}$`)

// LoadProfile parses a YAML device profile from the given path. An
// empty path returns the built-in Android profile. Fields omitted in
// the file keep their built-in values.
func LoadProfile(path string) (devcon.Profile, error) {
	profile := devcon.DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return devcon.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return devcon.Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	if pf.DeviceName != "" {
		profile.DeviceName = pf.DeviceName
	}
	if len(pf.VendorIDs) > 0 {
		normalized := make([]string, 0, len(pf.VendorIDs))
		for i, vid := range pf.VendorIDs {
			vid = strings.ToUpper(strings.TrimSpace(vid))
			if !vendorIDFormat.MatchString(vid) {
				return devcon.Profile{}, fmt.Errorf("profile vendor id %d: %q is not a 4-hex-digit code", i, pf.VendorIDs[i])
			}
			normalized = append(normalized, vid)
		}
		profile = devcon.NewProfile(profile.DeviceName, normalized)
	}

	return profile, nil
}
