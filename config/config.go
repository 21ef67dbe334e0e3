// Package config loads venue device requirements from a file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Glomels/audiohost"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("samplerate", 44100.0)
	v.SetDefault("blocksize", 512)
	v.SetDefault("inputchannels", 2)
	v.SetDefault("outputchannels", 2)
	v.SetDefault("midiinput", "")
}

// Load reads Requirements from the given config file, falling back to
// defaults for anything unset. A missing file is not an error; a malformed
// one is. Values can be overridden from the environment with the AUDIOHOST_
// prefix, e.g. AUDIOHOST_SAMPLERATE=48000.
func Load(path string) (audiohost.Requirements, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("audiohost")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				// no config file, defaults apply
			} else {
				return audiohost.Requirements{}, fmt.Errorf("could not read config %v: %w", path, err)
			}
		}
	}

	var req audiohost.Requirements
	if err := v.Unmarshal(&req); err != nil {
		return audiohost.Requirements{}, fmt.Errorf("could not unmarshal config: %w", err)
	}
	return req, nil
}
