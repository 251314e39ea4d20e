package logging

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// TemporalAdapter satisfies go.temporal.io/sdk/log.Logger so the Temporal
// client and worker log through the same zap core.
type TemporalAdapter struct {
	sugar *zap.SugaredLogger
}

var _ log.Logger = (*TemporalAdapter)(nil)

// NewTemporalAdapter wraps l for use in client.Options.Logger.
func NewTemporalAdapter(l *Logger) *TemporalAdapter {
	return &TemporalAdapter{sugar: l.zap.WithOptions(zap.AddCallerSkip(1)).Named("temporal").Sugar()}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) { a.sugar.Debugw(msg, keyvals...) }
func (a *TemporalAdapter) Info(msg string, keyvals ...interface{})  { a.sugar.Infow(msg, keyvals...) }
func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{})  { a.sugar.Warnw(msg, keyvals...) }
func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) { a.sugar.Errorw(msg, keyvals...) }
