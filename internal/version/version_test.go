package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	s := String()
	if !strings.Contains(s, "1.2.3") || !strings.Contains(s, GitSHA) {
		t.Errorf("String() = %q, missing build metadata", s)
	}
}
