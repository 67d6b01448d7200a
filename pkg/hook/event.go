package hook

import (
	"fmt"

	"github.com/getsentry/callprof/internal/frame"
)

// Kind is the class of an event.
type Kind int

const (
	KindCall Kind = iota
	KindReturn
	KindNativeCall
	KindNativeReturn
	KindNativeException
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindNativeCall:
		return "native-call"
	case KindNativeReturn:
		return "native-return"
	case KindNativeException:
		return "native-exception"
	case KindOther:
		return "other"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one of CallEvent, ReturnEvent, NativeCallEvent, NativeReturnEvent,
// NativeExceptionEvent or OtherEvent.
type Event interface {
	Kind() Kind
}

type (
	// CallEvent is emitted when an instrumented function starts. Frame is the
	// frame of that function.
	CallEvent struct {
		Frame frame.Frame
	}

	// ReturnEvent is emitted when an instrumented function returns, normally
	// or by panicking.
	ReturnEvent struct {
		Frame frame.Frame
	}

	// NativeCallEvent is emitted before calling a native callable. Frame is
	// the frame of the caller, the native callable has none.
	NativeCallEvent struct {
		Frame    frame.Frame
		Callable any
	}

	NativeReturnEvent struct {
		Frame    frame.Frame
		Callable any
	}

	// NativeExceptionEvent is emitted instead of NativeReturnEvent when the
	// native callable failed.
	NativeExceptionEvent struct {
		Frame    frame.Frame
		Callable any
		Err      error
	}

	// OtherEvent carries notifications that are neither calls nor returns.
	OtherEvent struct {
		Frame frame.Frame
		Name  string
		Arg   any
	}
)

func (CallEvent) Kind() Kind            { return KindCall }
func (ReturnEvent) Kind() Kind          { return KindReturn }
func (NativeCallEvent) Kind() Kind      { return KindNativeCall }
func (NativeReturnEvent) Kind() Kind    { return KindNativeReturn }
func (NativeExceptionEvent) Kind() Kind { return KindNativeException }
func (OtherEvent) Kind() Kind           { return KindOther }
