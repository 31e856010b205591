package osrelease

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `# version info
OS_NAME="Thin OS"
OS_SHORT_NAME=thinos
export OS_VERSION='1.2.3'
OS_PREFIX=to

if [ -n "$OS_DEBUG" ]; then
    echo "debug"
fi
`
	info, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cases := map[string]string{
		"OS_NAME":       "Thin OS",
		"OS_SHORT_NAME": "thinos",
		"OS_VERSION":    "1.2.3",
		"OS_PREFIX":     "to",
	}
	for key, want := range cases {
		if got := info[key]; got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}

	// Shell logic must be skipped, not interpreted.
	if _, ok := info["echo"]; ok {
		t.Error("non-assignment line leaked into parsed data")
	}
}

func TestProductName(t *testing.T) {
	info := Info{ProductNameKey: "thinos"}
	name, err := info.ProductName()
	if err != nil || name != "thinos" {
		t.Fatalf("expected thinos, got %q (%v)", name, err)
	}

	if _, err := (Info{}).ProductName(); err == nil {
		t.Fatal("expected error for missing product name")
	}
	if _, err := (Info{ProductNameKey: ""}).ProductName(); err == nil {
		t.Fatal("expected error for empty product name")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("OS_SHORT_NAME=thinos\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if info[ProductNameKey] != "thinos" {
		t.Errorf("unexpected product name %q", info[ProductNameKey])
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
