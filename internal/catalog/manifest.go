package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest formats accepted by ParseManifest.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// manifest is either a single import request or a list under "videos".
type manifest struct {
	Videos        []ImportRequest `json:"videos" yaml:"videos"`
	ImportRequest `yaml:",inline"`
}

// ManifestFormat picks the format from a file extension.
func ManifestFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// LoadManifest reads the analysis manifest at path.
func LoadManifest(path string) ([]ImportRequest, error) {
	format, err := ManifestFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	reqs, err := ParseManifest(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return reqs, nil
}

// ParseManifest decodes one or more import requests. Unknown keys are
// rejected so that typos do not silently drop data.
func ParseManifest(r io.Reader, format string) ([]ImportRequest, error) {
	var m manifest
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode json manifest: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("manifest is empty")
			}
			return nil, fmt.Errorf("decode yaml manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown manifest format %q", format)
	}

	single := m.Filename != "" || m.Filepath != ""
	switch {
	case len(m.Videos) > 0 && single:
		return nil, errors.New("manifest mixes top-level video fields with a videos list")
	case len(m.Videos) > 0:
		return m.Videos, nil
	case single:
		return []ImportRequest{m.ImportRequest}, nil
	default:
		return nil, errors.New("manifest has no videos")
	}
}
