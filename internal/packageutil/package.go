package packageutil

import "strings"

// Packages outside the standard library that are still considered part of the
// toolchain.
var systemPackagePrefixes = []string{
	"golang.org/x/",
	"google.golang.org/protobuf/",
}

// IsGoApplicationPackage reports whether pkg, a package path or native
// module, belongs to the profiled application. Standard library packages and
// native modules have no dot in their first path element.
func IsGoApplicationPackage(pkg string) bool {
	first := pkg
	if i := strings.IndexByte(pkg, '/'); i >= 0 {
		first = pkg[:i]
	}
	if !strings.Contains(first, ".") {
		return false
	}
	for _, p := range systemPackagePrefixes {
		if strings.HasPrefix(pkg, p) {
			return false
		}
	}
	return true
}
