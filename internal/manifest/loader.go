// Package manifest loads the product manifest that lists the plugins the
// installer can offer.
package manifest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

//go:embed manifest.json
var embeddedManifest []byte

// SourceEmbedded is the Source of a manifest read from the binary itself.
const SourceEmbedded = "embedded"

const defaultFetchTimeout = 5 * time.Second

// maxManifestSize caps a remote catalog body.
const maxManifestSize = 4 << 20

// LoadOptions controls where the manifest is loaded from.
// Zero value loads from embedded JSON only.
type LoadOptions struct {
	// RemoteURL is tried first. Any failure falls through to the next source.
	RemoteURL string
	// LocalOverride is read when set and present. A present file that does
	// not parse is an error.
	LocalOverride string
	// Timeout for the remote fetch. Default 5s.
	Timeout time.Duration
}

// errSkip marks a source that is unavailable rather than broken.
var errSkip = errors.New("source unavailable")

type source struct {
	name string
	read func() ([]byte, error)
	// strict sources must parse once read.
	strict bool
}

// Load walks the sources remote URL, local override, embedded JSON and
// returns the first manifest that parses. Reasons for skipping earlier sources
// are kept in Manifest.Skipped.
func Load(opts LoadOptions) (*Manifest, error) {
	var sources []source
	if opts.RemoteURL != "" {
		sources = append(sources, source{
			name: opts.RemoteURL,
			read: func() ([]byte, error) { return fetch(opts.RemoteURL, opts.Timeout) },
		})
	}
	if opts.LocalOverride != "" {
		sources = append(sources, source{
			name:   opts.LocalOverride,
			read:   func() ([]byte, error) { return readOverride(opts.LocalOverride) },
			strict: true,
		})
	}
	sources = append(sources, source{
		name:   SourceEmbedded,
		read:   func() ([]byte, error) { return embeddedManifest, nil },
		strict: true,
	})

	var skipped []string
	for _, src := range sources {
		data, err := src.read()
		if err != nil {
			if src.strict && !errors.Is(err, errSkip) {
				return nil, err
			}
			skipped = append(skipped, fmt.Sprintf("%s: %v", src.name, err))
			continue
		}
		m, err := Parse(data)
		if err != nil {
			if src.strict {
				return nil, fmt.Errorf("%s: %w", src.name, err)
			}
			skipped = append(skipped, fmt.Sprintf("%s: %v", src.name, err))
			continue
		}
		m.Source = src.name
		m.Skipped = skipped
		return m, nil
	}
	// The embedded source is strict, so the loop always returns.
	return nil, errors.New("no manifest source")
}

// Embedded returns the manifest compiled into the binary.
func Embedded() (*Manifest, error) {
	return Load(LoadOptions{})
}

func readOverride(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: not found", errSkip)
	}
	if err != nil {
		return nil, fmt.Errorf("read override %s: %w", path, err)
	}
	return data, nil
}

func fetch(url string, timeout time.Duration) ([]byte, error) {
	if timeout == 0 {
		timeout = defaultFetchTimeout
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
}

// Parse decodes a manifest and rejects plugins without an id or listed twice.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]bool, len(m.Plugins))
	for i, c := range m.Plugins {
		if c.ID == "" {
			return nil, fmt.Errorf("parse manifest: plugin %d has no id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("parse manifest: duplicate plugin id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return &m, nil
}
