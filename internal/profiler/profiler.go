// Package profiler times every instrumented call of a program.
//
// A Session installs itself as the profile handler of a hook.Runtime. On
// each call event it pushes a timestamp on the callable's stack, on each
// return event it pops it and adds the elapsed time to the callable's
// cumulative time. Ending the session restores whatever handler was
// installed before it began, so sessions can be nested or run one after the
// other.
//
// The measured times include the profiler's own overhead per event, no
// calibration is attempted.
package profiler

import (
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/callprof/internal/calltimer"
	"github.com/getsentry/callprof/internal/clock"
	"github.com/getsentry/callprof/internal/errorutil"
	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/pkg/hook"
)

type (
	Config struct {
		// Clock defaults to clock.System().
		Clock clock.Clock
		// Logger defaults to the global zerolog logger.
		Logger *zerolog.Logger
		// Hub receives profiling failures. It defaults to sentry.CurrentHub().
		Hub *sentry.Hub
	}

	Session struct {
		ID uuid.UUID

		rt     *hook.Runtime
		prev   hook.Handler
		table  *calltimer.Table
		clock  clock.Clock
		logger zerolog.Logger
		hub    *sentry.Hub

		err   error
		ended bool
	}
)

// Begin starts a session on rt. The session must be ended with End.
func Begin(rt *hook.Runtime, cfg Config) *Session {
	// Begin's return is delivered to the new session without a matching call
	// and is ignored.
	defer rt.Enter()()

	s := &Session{
		ID:    uuid.New(),
		rt:    rt,
		prev:  rt.Profile(),
		table: calltimer.NewTable(),
		clock: cfg.Clock,
		hub:   cfg.Hub,
	}
	if s.clock == nil {
		s.clock = clock.System()
	}
	if cfg.Logger != nil {
		s.logger = cfg.Logger.With().Str("session_id", s.ID.String()).Logger()
	} else {
		s.logger = log.With().Str("session_id", s.ID.String()).Logger()
	}
	if s.hub == nil {
		s.hub = sentry.CurrentHub()
	}

	rt.SetProfile(s)
	s.logger.Debug().Bool("nested", s.prev != nil).Msg("profiling session started")
	return s
}

// Run profiles fn in a new session on rt. The previous handler is restored
// whether fn returns or panics.
func Run(rt *hook.Runtime, cfg Config, fn func() error) (table *calltimer.Table, err error) {
	s := Begin(rt, cfg)
	defer func() {
		if endErr := s.End(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	err = fn()
	return s.Table(), err
}

// Table returns the aggregation table. It keeps being updated until the
// session ends.
func (s *Session) Table() *calltimer.Table {
	return s.table
}

// End detaches the session and reinstalls the handler that was installed
// when it began. It returns the failure that terminated profiling, if any.
// Calls in flight are not unwound, their return is simply not observed.
func (s *Session) End() error {
	if s.ended {
		return s.wrappedErr()
	}
	s.ended = true

	if current := s.rt.Profile(); current != hook.Handler(s) && s.err == nil {
		s.logger.Warn().
			AnErr("handler_error", s.rt.Err()).
			Msg("session was not the installed profile handler when it ended")
	}
	s.rt.SetProfile(restorable(s.prev))

	if keys := s.table.Unmatched(); len(keys) > 0 {
		s.logger.Warn().Strs("keys", keys).Msg("calls without a matching return")
	}
	s.logger.Debug().Int("callables", s.table.Len()).Msg("profiling session ended")
	return s.wrappedErr()
}

// restorable skips the sessions already ended, which happens when sessions
// don't end in the reverse order they began.
func restorable(h hook.Handler) hook.Handler {
	for {
		prev, ok := h.(*Session)
		if !ok || !prev.ended {
			return h
		}
		h = prev.prev
	}
}

func (s *Session) wrappedErr() error {
	if s.err == nil {
		return nil
	}
	return fmt.Errorf("profiler: session %s: %w", s.ID, s.err)
}

// HandleEvent implements hook.Handler. A panic while handling e is reported
// like an identity resolution failure before being propagated.
func (s *Session) HandleEvent(e hook.Event) error {
	if s.ended {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.fail(e, fmt.Errorf("%w: panic: %v", errorutil.ErrIdentityResolution, rec))
			panic(rec)
		}
	}()

	switch ev := e.(type) {
	case hook.CallEvent:
		key, err := ev.Frame.Key()
		if err != nil {
			return s.fail(e, err)
		}
		s.table.RecordCall(key, s.clock.Now())
	case hook.NativeCallEvent:
		key, err := frame.NativeKey(ev.Callable)
		if err != nil {
			return s.fail(e, err)
		}
		s.table.RecordCall(key, s.clock.Now())
	case hook.ReturnEvent:
		key, err := ev.Frame.Key()
		if err != nil {
			return s.fail(e, err)
		}
		s.table.RecordReturn(key, s.clock.Now())
	case hook.NativeReturnEvent:
		key, err := frame.NativeKey(ev.Callable)
		if err != nil {
			return s.fail(e, err)
		}
		s.table.RecordReturn(key, s.clock.Now())
	case hook.NativeExceptionEvent:
		key, err := frame.NativeKey(ev.Callable)
		if err != nil {
			return s.fail(e, err)
		}
		s.table.RecordReturn(key, s.clock.Now())
	case hook.OtherEvent:
		s.logger.Info().
			Str("event", ev.Name).
			Str("frame", ev.Frame.String()).
			Interface("arg", ev.Arg).
			Msg("ignoring event")
	default:
		s.logger.Warn().
			Str("event", e.Kind().String()).
			Str("type", fmt.Sprintf("%T", e)).
			Msg("unknown event class")
	}
	return nil
}

// fail logs everything known about the event that couldn't be handled and
// reports it, before the error is returned to the runtime which detaches the
// session.
func (s *Session) fail(e hook.Event, err error) error {
	f, callable := describe(e)
	s.logger.Error().
		Err(err).
		Str("event", e.Kind().String()).
		Str("frame", f.String()).
		Str("callable", fmt.Sprintf("%T(%v)", callable, callable)).
		Msg("can't resolve callable identity")
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", s.ID.String())
		scope.SetTag("event", e.Kind().String())
		scope.SetContext("event", map[string]interface{}{
			"frame":    f.String(),
			"callable": fmt.Sprintf("%T(%v)", callable, callable),
		})
		s.hub.CaptureException(err)
	})
	s.err = err
	return err
}

func describe(e hook.Event) (frame.Frame, any) {
	switch ev := e.(type) {
	case hook.CallEvent:
		return ev.Frame, nil
	case hook.ReturnEvent:
		return ev.Frame, nil
	case hook.NativeCallEvent:
		return ev.Frame, ev.Callable
	case hook.NativeReturnEvent:
		return ev.Frame, ev.Callable
	case hook.NativeExceptionEvent:
		return ev.Frame, ev.Callable
	case hook.OtherEvent:
		return ev.Frame, ev.Arg
	}
	return frame.Frame{}, nil
}
