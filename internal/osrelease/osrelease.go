// Package osrelease parses the shell-sourceable key/value version-info
// resource found inside a checkout. The resource is parsed as
// structured data, never executed.
package osrelease

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileName is the version-info resource at the checkout root.
const FileName = "osver"

// ProductNameKey exposes the short product-name string used in image
// filenames.
const ProductNameKey = "OS_SHORT_NAME"

// Info holds the parsed key/value pairs.
type Info map[string]string

// ParseFile reads and parses a version-info resource.
func ParseFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open version info %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads KEY=VALUE lines. Blank lines and #-comments are skipped,
// an optional "export " prefix is accepted, and single or double quotes
// around values are stripped. Lines that are not assignments (shell
// logic the resource may contain) are ignored rather than executed.
func Parse(r io.Reader) (Info, error) {
	info := Info{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		info[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version info: %w", err)
	}
	return info, nil
}

// ProductName returns the short product-name value, or an error when
// the key is absent or empty.
func (i Info) ProductName() (string, error) {
	name := i[ProductNameKey]
	if name == "" {
		return "", fmt.Errorf("version info does not expose %s", ProductNameKey)
	}
	return name, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
