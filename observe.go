package mirage

import "go.uber.org/zap"

// ResolveEvent describes one relation resolution.
type ResolveEvent struct {
	Model      string
	Property   string
	Key        string
	TargetKeys []string
}

// ApplyEvent describes one relation write, after inverse maintenance.
type ApplyEvent struct {
	Model      string
	Property   string
	Key        string
	TargetKeys []string
	Unset      bool
}

// Observer receives engine events. Any callback may be nil; the zero
// Observer is a no-op. There is no global logger: observation is injected
// at construction via WithObserver.
type Observer struct {
	OnResolve func(ResolveEvent)
	OnApply   func(ApplyEvent)
}

func (o Observer) resolve(ev ResolveEvent) {
	if o.OnResolve != nil {
		o.OnResolve(ev)
	}
}

func (o Observer) apply(ev ApplyEvent) {
	if o.OnApply != nil {
		o.OnApply(ev)
	}
}

// NewZapObserver returns an Observer that logs resolve and apply events at
// debug level on the given logger.
func NewZapObserver(logger *zap.Logger) Observer {
	return Observer{
		OnResolve: func(ev ResolveEvent) {
			logger.Debug("relation resolved",
				zap.String("model", ev.Model),
				zap.String("property", ev.Property),
				zap.String("key", ev.Key),
				zap.Strings("targets", ev.TargetKeys),
			)
		},
		OnApply: func(ev ApplyEvent) {
			logger.Debug("relation applied",
				zap.String("model", ev.Model),
				zap.String("property", ev.Property),
				zap.String("key", ev.Key),
				zap.Strings("targets", ev.TargetKeys),
				zap.Bool("unset", ev.Unset),
			)
		},
	}
}
