// Package metrics содержит прометеевские счётчики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookEventsTotal считает биллинговые события по типу и исходу обработки.
var WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "billing_webhook_events_total",
	Help: "Количество обработанных биллинговых событий по типу и исходу.",
}, []string{"type", "outcome"})

// TierChangesTotal считает применённые смены тарифа.
var TierChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "billing_tier_changes_total",
	Help: "Количество применённых смен тарифа.",
}, []string{"to_tier"})

// GuestMigrationsTotal считает миграции гостевых профилей по исходу.
var GuestMigrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guest_migrations_total",
	Help: "Количество миграций гостевых профилей по исходу.",
}, []string{"outcome"})
