package host

import "github.com/justyntemme/vst3host/pkg/vst3"

// Descriptor identifies one instantiable effect class inside a bundle.
// It is the unit the registry lists and the key for instance creation.
type Descriptor struct {
	ClassID    vst3.ClassID
	Name       string
	Vendor     string
	Version    string
	Category   string
	BundlePath string
}
