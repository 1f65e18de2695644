package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Keys of aktin.properties read by the importer.
const (
	PropAlgorithm     = "pseudonym.algorithm"
	PropSalt          = "pseudonym.salt"
	PropBillingRoot   = "cda.billing.root.preset"
	PropEncounterRoot = "cda.encounter.root.preset"
)

// Properties is a parsed key=value file. Lines without '=' are ignored and
// a key that occurs twice keeps its first value.
type Properties map[string]string

// ReadProperties parses the properties file at path.
func ReadProperties(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("properties file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("open properties: %w", err)
	}
	defer f.Close()

	props := make(Properties)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		if _, seen := props[key]; !seen {
			props[key] = strings.TrimSpace(value)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	return props, nil
}

// Get returns the value of key, or "" when it is absent.
func (p Properties) Get(key string) string {
	return p[key]
}

// Pseudonym holds the settings of the identity matching.
type Pseudonym struct {
	Algorithm     string
	Salt          string
	BillingRoot   string
	EncounterRoot string
}

// Pseudonym extracts the matching settings.
func (p Properties) Pseudonym() Pseudonym {
	return Pseudonym{
		Algorithm:     p.Get(PropAlgorithm),
		Salt:          p.Get(PropSalt),
		BillingRoot:   p.Get(PropBillingRoot),
		EncounterRoot: p.Get(PropEncounterRoot),
	}
}
