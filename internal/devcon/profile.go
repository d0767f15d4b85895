package devcon

// Profile describes how to recognize the target device among USB bus
// entries: a display-name substring tried first, and a vendor-ID
// allowlist used as a coarser last resort. Display names are
// unreliable across locales and driver versions, which is why the
// vendor match exists at all.
type Profile struct {
	// DeviceName is matched case-insensitively against display names.
	DeviceName string
	// VendorIDs holds uppercase 4-hex-digit vendor codes.
	VendorIDs map[string]struct{}
}

const androidDeviceName = "Android Composite ADB Interface"

var androidVendorIDs = []string{
	"18D1", // Google
	"0BB4", // HTC
	"12D1", // Huawei
	"04E8", // Samsung
	"22B8", // Motorola
	"2A70", // OnePlus
	"0FCE", // Sony
	"0502", // Acer
	"05C6", // Qualcomm
}

// DefaultProfile returns the built-in Android target profile.
func DefaultProfile() Profile {
	return NewProfile(androidDeviceName, androidVendorIDs)
}

// NewProfile builds a Profile from a name substring and vendor codes.
func NewProfile(deviceName string, vendorIDs []string) Profile {
	ids := make(map[string]struct{}, len(vendorIDs))
	for _, id := range vendorIDs {
		ids[id] = struct{}{}
	}
	return Profile{DeviceName: deviceName, VendorIDs: ids}
}

// AllowsVendor reports whether the vendor code is on the allowlist.
func (p Profile) AllowsVendor(vid string) bool {
	_, ok := p.VendorIDs[vid]
	return ok
}
