package patch

import "gopkg.in/yaml.v3"

// Description is a serializable summary of a patch. After any refresh
// attempt it is either manifest-derived, or a stub whose Error field carries
// the message that produced it; it is never nil.
type Description struct {
	UID          string `yaml:"uid"`
	Version      string `yaml:"version,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Description  string `yaml:"description,omitempty"`
	Category     string `yaml:"category,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	IsInstrument bool   `yaml:"isInstrument,omitempty"`
	ManifestPath string `yaml:"manifestPath,omitempty"`
	Error        string `yaml:"error,omitempty"`
}

// errorDescription builds the stub carried after a failed refresh.
func errorDescription(manifestPath, message string) *Description {
	return &Description{ManifestPath: manifestPath, Error: message}
}

// IsValid reports whether the description was derived from a manifest
// rather than from a load failure.
func (d *Description) IsValid() bool { return d.Error == "" }

// Marshal renders the description as YAML.
func (d *Description) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
