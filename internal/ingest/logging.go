// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cursus/internal/logging"
)

// watermillLogger bridges Watermill's LoggerAdapter onto zerolog so queue
// internals log through the same sink as the rest of the process.
type watermillLogger struct {
	l zerolog.Logger
}

// NewWatermillLogger returns a Watermill logger backed by the global
// zerolog logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{l: logging.Logger()}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	ev := w.l.Error().Err(err)
	addFields(ev, fields)
	ev.Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	ev := w.l.Info()
	addFields(ev, fields)
	ev.Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	ev := w.l.Debug()
	addFields(ev, fields)
	ev.Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	ev := w.l.Trace()
	addFields(ev, fields)
	ev.Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.l.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{l: ctx.Logger()}
}

func addFields(ev *zerolog.Event, fields watermill.LogFields) {
	for k, v := range fields {
		ev.Interface(k, v)
	}
}
