package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/statecore/internal/event"
)

// KindLog collects the kinds of every event a broadcaster fans out.
type KindLog struct {
	Kinds []event.Kind
}

// WatchKinds subscribes a KindLog to bus.
func WatchKinds(bus *event.Broadcaster) *KindLog {
	log := &KindLog{}
	bus.Subscribe(func(e event.Event) {
		log.Kinds = append(log.Kinds, e.Kind())
	})
	return log
}

// Strings returns the collected kinds as plain strings.
func (l *KindLog) Strings() []string {
	out := make([]string, len(l.Kinds))
	for i, k := range l.Kinds {
		out[i] = string(k)
	}
	return out
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
