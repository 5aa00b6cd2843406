package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileInfo identifies one session profile available on disk.
type ProfileInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

// Profile is a named preset of session parameters.
type Profile struct {
	Name           string `yaml:"name"`
	TargetLanguage string `yaml:"target_language"`
	Voice          string `yaml:"voice"`
	AudioEnabled   *bool  `yaml:"audio_enabled"`
}

// ScanProfiles lists the YAML profiles under dir, sorted by filename.
func ScanProfiles(dir string) ([]ProfileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	profiles := []ProfileInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		profile, err := ReadProfile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		display := profile.Name
		if display == "" {
			display = strings.TrimSuffix(name, filepath.Ext(name))
		}
		profiles = append(profiles, ProfileInfo{Filename: name, Name: display})
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Filename < profiles[j].Filename
	})
	return profiles, nil
}

// ReadProfile parses one profile file.
func ReadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, err
	}
	if profile.TargetLanguage == "" && profile.Voice == "" && profile.AudioEnabled == nil {
		return Profile{}, errors.New("profile sets no session parameters")
	}
	return profile, nil
}

// ApplyProfile overrides the session fields the profile sets.
func ApplyProfile(cfg *Config, profile Profile) {
	if cfg == nil {
		return
	}
	if profile.TargetLanguage != "" {
		cfg.TargetLanguage = profile.TargetLanguage
	}
	if profile.Voice != "" {
		cfg.Voice = profile.Voice
	}
	if profile.AudioEnabled != nil {
		cfg.AudioEnabled = *profile.AudioEnabled
	}
}
