package transcoder

import (
	"fmt"

	"github.com/livelens/media-processor/pkg/models"
)

// Profile defines the encoding parameters for one output variant.
// Bitrates are in kbit/s.
type Profile struct {
	Name         string
	Width        int
	Height       int
	VideoBitrate int
	AudioBitrate int
	Preset       string
}

// DefaultProfiles defines the standard quality ladder for streaming
// output.
var DefaultProfiles = []Profile{
	{"360p", 640, 360, 800, 128, "fast"},
	{"480p", 854, 480, 1200, 128, "fast"},
	{"720p", 1280, 720, 2500, 192, "medium"},
	{"1080p", 1920, 1080, 4500, 256, "medium"},
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", models.ErrInvalidProfile)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %s: resolution %dx%d", models.ErrInvalidProfile, p.Name, p.Width, p.Height)
	}
	if p.VideoBitrate <= 0 {
		return fmt.Errorf("%w: %s: video bitrate %d", models.ErrInvalidProfile, p.Name, p.VideoBitrate)
	}
	if p.AudioBitrate <= 0 {
		return fmt.Errorf("%w: %s: audio bitrate %d", models.ErrInvalidProfile, p.Name, p.AudioBitrate)
	}
	return nil
}

// BufferSize returns the encoder rate-control buffer in kbit/s. It is
// always twice the target video bitrate, never configured separately.
func (p Profile) BufferSize() int {
	return p.VideoBitrate * 2
}

// ValidateProfiles validates every profile in the set.
func ValidateProfiles(profiles []Profile) error {
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetProfileByName returns the profile matching the given name, or nil
// if not found.
func GetProfileByName(profiles []Profile, name string) *Profile {
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i]
		}
	}
	return nil
}
