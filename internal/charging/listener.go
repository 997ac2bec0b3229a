package charging

import (
	"context"

	"github.com/free5gc/ocs/internal/ccasession"
	"github.com/free5gc/ocs/internal/logger"
)

// Transition is reported after the session state it describes was persisted.
type Transition struct {
	SessionID   string
	Subscriber  string
	From        ccasession.State
	To          ccasession.State
	RequestType RequestType
}

// TransitionListener is called synchronously on the request path. Its errors
// and panics are logged and never change the answer.
type TransitionListener interface {
	OnTransition(ctx context.Context, t Transition) error
}

type TransitionListenerFunc func(ctx context.Context, t Transition) error

func (f TransitionListenerFunc) OnTransition(ctx context.Context, t Transition) error {
	return f(ctx, t)
}

func (e *Engine) notify(ctx context.Context, t Transition) {
	for _, l := range e.listeners {
		e.call(ctx, l, t)
	}
}

func (e *Engine) call(ctx context.Context, l TransitionListener, t Transition) {
	defer func() {
		if p := recover(); p != nil {
			logger.CcrLog.WithField("session", t.SessionID).
				Errorf("Transition listener panic: %v", p)
		}
	}()
	if err := l.OnTransition(ctx, t); err != nil {
		logger.CcrLog.WithField("session", t.SessionID).
			Errorf("Transition listener: %+v", err)
	}
}
