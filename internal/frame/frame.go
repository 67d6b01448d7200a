package frame

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/getsentry/callprof/internal/errorutil"
)

type (
	Frame struct {
		File     string  `json:"filename,omitempty"`
		Function string  `json:"function,omitempty"`
		Line     uint32  `json:"lineno,omitempty"`
		Package  string  `json:"package,omitempty"`
		PC       uintptr `json:"-"`
	}

	// Native is implemented by callables living outside of the instrumented
	// code, for which there is no frame to look at.
	Native interface {
		Module() string
		Name() string
	}
)

// FromPC symbolizes a return program counter as returned by runtime.Callers.
// Inlined calls are expanded so the innermost logical function is returned.
func FromPC(pc uintptr) Frame {
	if pc == 0 {
		return Frame{}
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	pkg, _ := SplitFunctionName(f.Function)
	return Frame{
		File:     f.File,
		Function: f.Function,
		Line:     uint32(f.Line),
		Package:  pkg,
		PC:       pc,
	}
}

// CallerPC returns the program counter of the function skip levels above the
// caller of CallerPC, CallerPC(0) being the function calling CallerPC. The
// frame itself is only resolved with FromPC when needed.
func CallerPC(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// Key returns the callable key of the function running in that frame: its
// fully qualified name, which is stable across calls and unique per function.
func (f Frame) Key() (string, error) {
	if f.Function == "" {
		return "", fmt.Errorf("frame: %w: no function for pc %#x (%s:%d)", errorutil.ErrIdentityResolution, f.PC, f.File, f.Line)
	}
	return f.Function, nil
}

func (f Frame) String() string {
	if f.Function == "" {
		return fmt.Sprintf("<unknown> %s:%d", f.File, f.Line)
	}
	return fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line)
}

// NativeKey resolves the key of a native callable from the callable itself:
// <module>.<name>, or just <name> when the module is unknown.
func NativeKey(callable any) (string, error) {
	switch c := callable.(type) {
	case nil:
		return "", fmt.Errorf("frame: %w: nil native callable", errorutil.ErrIdentityResolution)
	case Native:
		name := c.Name()
		if name == "" {
			return "", fmt.Errorf("frame: %w: native callable %T has no name", errorutil.ErrIdentityResolution, callable)
		}
		if module := c.Module(); module != "" {
			return module + "." + name, nil
		}
		return name, nil
	}
	v := reflect.ValueOf(callable)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "", fmt.Errorf("frame: %w: %T is not callable", errorutil.ErrIdentityResolution, callable)
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil || fn.Name() == "" {
		return "", fmt.Errorf("frame: %w: no symbol for %T", errorutil.ErrIdentityResolution, callable)
	}
	module, name := SplitFunctionName(fn.Name())
	if module == "" {
		return name, nil
	}
	return module + "." + name, nil
}

// SplitFunctionName splits a runtime function name into its package path and
// the package-relative name.
//
// For example:
// - "github.com/getsentry/callprof/internal/workload.(*Model).Forward" becomes
// "github.com/getsentry/callprof/internal/workload" and "(*Model).Forward"
// - "math.Exp" becomes "math" and "Exp"
// - "main" becomes "" and "main"
func SplitFunctionName(function string) (pkg, name string) {
	lastSlash := strings.LastIndex(function, "/")
	dot := strings.Index(function[lastSlash+1:], ".")
	if dot == -1 {
		return "", function
	}
	dot += lastSlash + 1
	return function[:dot], function[dot+1:]
}
