package arch

import (
	"testing"
)

func TestForCore(t *testing.T) {
	tests := map[string]string{"r5f": "arm", "arm64": "arm64", "a72": "arm64"}
	for kind, want := range tests {
		a, err := ForCore(kind)
		if err != nil {
			t.Fatal(err)
		}
		if a.Name != want {
			t.Errorf("ForCore(%q) = %s, want %s", kind, a.Name, want)
		}
	}
	if _, err := ForCore("c66x"); err == nil {
		t.Error("DSP core kind accepted")
	}
	if _, err := GetArch("x86"); err == nil {
		t.Error("x86 found")
	}
}
