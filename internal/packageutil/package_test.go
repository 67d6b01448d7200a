package packageutil

import "testing"

func frameType(isApplication bool) string {
	if isApplication {
		return "application"
	}
	return "system"
}

func TestIsGoApplicationPackage(t *testing.T) {
	tests := []struct {
		name          string
		pkg           string
		isApplication bool
	}{
		{
			name:          "standard library",
			pkg:           "net/http",
			isApplication: false,
		},
		{
			name:          "native module",
			pkg:           "math",
			isApplication: false,
		},
		{
			name:          "dotted native module",
			pkg:           "torch",
			isApplication: false,
		},
		{
			name:          "extended standard library",
			pkg:           "golang.org/x/tools/go/ast/astutil",
			isApplication: false,
		},
		{
			name:          "application package",
			pkg:           "github.com/getsentry/callprof/internal/workload",
			isApplication: true,
		},
		{
			name:          "empty",
			pkg:           "",
			isApplication: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGoApplicationPackage(tt.pkg); got != tt.isApplication {
				t.Fatalf("want %s, got %s", frameType(tt.isApplication), frameType(got))
			}
		})
	}
}
