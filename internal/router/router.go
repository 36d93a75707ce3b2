package router

import (
	"pulso/internal/model"
)

// HealthSource is the view of processor health the router needs.
type HealthSource interface {
	IsHealthy(processor model.ProcessorKind) bool
}

// Router turns the current health of both processors into an ordered
// preference list. The primary processor carries the lower fee, so it goes
// first whenever it looks healthy.
type Router struct {
	health HealthSource
}

func NewRouter(health HealthSource) *Router {
	return &Router{health: health}
}

func (r *Router) PreferenceOrder() []model.ProcessorKind {
	primaryOK := r.health.IsHealthy(model.ProcessorPrimary)
	secondaryOK := r.health.IsHealthy(model.ProcessorSecondary)

	switch {
	case primaryOK && !secondaryOK:
		return []model.ProcessorKind{model.ProcessorPrimary}
	case secondaryOK && !primaryOK:
		return []model.ProcessorKind{model.ProcessorSecondary}
	default:
		// Both healthy, or both failing. Health checks can be stale or
		// plain wrong, so with nothing healthy we still try both.
		return []model.ProcessorKind{model.ProcessorPrimary, model.ProcessorSecondary}
	}
}
