package ahttp

import (
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger is the package's structured logger, built on logiface
// with the stumpy (zero-allocation JSON) backend, matching how the rest
// of the example pack wires logiface up.
func defaultLogger() *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New(stumpy.L.WithStumpy())
}

// engineLogger adapts a logiface logger to [dispatch.Logger], so the
// dispatch engine can report retries and give-ups without depending on
// a logging library itself.
type engineLogger struct {
	log *logiface.Logger[*stumpy.Event]
}

func (l *engineLogger) LogRetry(correlationID, method, url string, attempt int, delay time.Duration) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Info().
		Str(`correlation_id`, correlationID).
		Str(`method`, method).
		Str(`url`, url).
		Int(`attempt`, attempt).
		Str(`delay`, delay.String()).
		Log(`retrying request`)
}

func (l *engineLogger) LogGiveUp(correlationID, method, url string, err error) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Err().
		Str(`correlation_id`, correlationID).
		Str(`method`, method).
		Str(`url`, url).
		Err(err).
		Log(`request failed`)
}
