package main

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "siteapi"

type appMetrics struct {
	loginAttempts      *prometheus.CounterVec
	contentWrites      *prometheus.CounterVec
	contactSubmissions *prometheus.CounterVec
	mailSends          *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
}

// newAppMetrics builds the application counters and registers them on reg.
// Each App gets its own set so tests can use isolated registries.
func newAppMetrics(reg prometheus.Registerer) *appMetrics {
	m := &appMetrics{
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "login_attempts_total", Help: "Admin login attempts by outcome."},
			[]string{"outcome"},
		),
		contentWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "content_writes_total", Help: "Site content replacement attempts by outcome."},
			[]string{"outcome"},
		),
		contactSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "contact_submissions_total", Help: "Contact form submissions by outcome."},
			[]string{"outcome"},
		),
		mailSends: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "mail_sends_total", Help: "Outbound email attempts by provider and outcome."},
			[]string{"provider", "outcome"},
		),
		rateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: metricsNamespace, Name: "rate_limit_decisions_total", Help: "Rate limiter decisions by limiter type."},
			[]string{"limiter", "decision"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.loginAttempts, m.contentWrites, m.contactSubmissions, m.mailSends, m.rateLimitDecisions)
	}
	return m
}
