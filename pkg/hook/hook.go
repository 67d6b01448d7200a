// Package hook is the instrumentation runtime profiled programs report their
// calls to.
//
// Instrumented functions start with
//
//	defer hook.Enter()()
//
// which emits a call event when the function starts and a return event when
// it returns or panics. Calls into code that isn't instrumented, and has no
// frame of its own, are reported with Native.
//
// Events are delivered synchronously to the handler installed on the
// runtime, if any. A Runtime is not safe for concurrent use: profiled
// programs are expected to be single-threaded.
package hook

import (
	"fmt"

	"github.com/getsentry/callprof/internal/frame"
)

// Handler receives every event emitted while it is installed. A handler
// returning an error is detached from the runtime.
type Handler interface {
	HandleEvent(Event) error
}

type HandlerFunc func(Event) error

func (f HandlerFunc) HandleEvent(e Event) error {
	return f(e)
}

type Runtime struct {
	handler     Handler
	dispatching bool
	err         error
}

// Default is the process-wide runtime used by the package level functions.
var Default = New()

func New() *Runtime {
	return &Runtime{}
}

// Profile returns the installed handler, nil if there is none.
func (r *Runtime) Profile() Handler {
	return r.handler
}

// SetProfile installs h, replacing the current handler. A nil h disables
// event delivery.
func (r *Runtime) SetProfile(h Handler) {
	r.handler = h
	r.err = nil
}

// Err returns the error that detached the handler installed by the last
// SetProfile, nil if it is still installed or was removed with SetProfile.
func (r *Runtime) Err() error {
	return r.err
}

// Emit delivers e to the installed handler. Events emitted while a handler is
// running, by code the handler calls, are dropped. A handler that returns an
// error or panics is detached, the panic is propagated.
func (r *Runtime) Emit(e Event) {
	if !r.active() {
		return
	}
	h := r.handler
	r.dispatching = true
	defer func() {
		r.dispatching = false
		if rec := recover(); rec != nil {
			r.detach(h, fmt.Errorf("hook: handler panic on %s event: %v", e.Kind(), rec))
			panic(rec)
		}
	}()
	if err := h.HandleEvent(e); err != nil {
		r.detach(h, err)
	}
}

func (r *Runtime) detach(h Handler, err error) {
	if r.handler == h {
		r.handler = nil
	}
	r.err = err
}

// Enter emits a call event for its caller and returns the function emitting
// the matching return event.
func (r *Runtime) Enter() func() {
	return r.enter(1)
}

// Native calls call, reporting it as an invocation of callable. It emits a
// native-exception event instead of a native-return one if call returns an
// error or panics. Panics are propagated.
func (r *Runtime) Native(callable any, call func() error) error {
	return r.native(1, callable, call)
}

func (r *Runtime) active() bool {
	return r.handler != nil && !r.dispatching
}

//go:noinline
func (r *Runtime) enter(skip int) func() {
	pc := frame.CallerPC(skip + 1)
	if r.active() {
		r.Emit(CallEvent{Frame: frame.FromPC(pc)})
	}
	return func() {
		if r.active() {
			r.Emit(ReturnEvent{Frame: frame.FromPC(pc)})
		}
	}
}

//go:noinline
func (r *Runtime) native(skip int, callable any, call func() error) (err error) {
	pc := frame.CallerPC(skip + 1)
	if r.active() {
		r.Emit(NativeCallEvent{Frame: frame.FromPC(pc), Callable: callable})
	}
	defer func() {
		if rec := recover(); rec != nil {
			if r.active() {
				r.Emit(NativeExceptionEvent{Frame: frame.FromPC(pc), Callable: callable, Err: fmt.Errorf("panic: %v", rec)})
			}
			panic(rec)
		}
		if !r.active() {
			return
		}
		if err != nil {
			r.Emit(NativeExceptionEvent{Frame: frame.FromPC(pc), Callable: callable, Err: err})
		} else {
			r.Emit(NativeReturnEvent{Frame: frame.FromPC(pc), Callable: callable})
		}
	}()
	return call()
}

// Enter is Runtime.Enter on the default runtime.
func Enter() func() {
	return Default.enter(1)
}

// Native is Runtime.Native on the default runtime.
func Native(callable any, call func() error) error {
	return Default.native(1, callable, call)
}
