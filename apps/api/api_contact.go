package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/S-troup10/westBasketball/libs/mailer"
	"github.com/gin-gonic/gin"
)

var (
	errContactFieldsRequired  = &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: "name, email, and message are required"}
	errContactReceiverMissing = &apiError{Status: http.StatusInternalServerError, Code: "contact_not_configured", Message: "contact receiver email not configured"}
	errContactDeliveryFailed  = &apiError{Status: http.StatusInternalServerError, Code: "delivery_failed", Message: "Unable to send your message right now."}
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Subject string `json:"subject"`
}

func (r contactRequest) normalize() contactSubmission {
	sub := contactSubmission{
		Name:    strings.TrimSpace(r.Name),
		Email:   strings.TrimSpace(r.Email),
		Message: strings.TrimSpace(r.Message),
		Subject: strings.TrimSpace(r.Subject),
	}
	if sub.Subject == "" {
		sub.Subject = defaultContactSubject
	}
	return sub
}

// contactProbeHandler lets the front-end check the contact endpoint is reachable.
// Method: GET /api/contact
// Access: Public
func (a *App) contactProbeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// contactSubmitHandler relays a contact form to the club inbox and confirms
// receipt to the visitor.
// Method: POST /api/contact
// Access: Public
func (a *App) contactSubmitHandler(c *gin.Context) {
	var req contactRequest
	// malformed bodies fall through to field validation
	_ = c.ShouldBindJSON(&req)
	sub := req.normalize()

	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		a.metrics.contactSubmissions.WithLabelValues("invalid").Inc()
		writeAPIError(c, errContactFieldsRequired)
		return
	}

	receiver := a.cfg.ContactReceiverEmail
	if receiver == "" {
		a.metrics.contactSubmissions.WithLabelValues("unconfigured").Inc()
		a.log.Error("contact submission rejected: no receiver address configured")
		writeAPIError(c, errContactReceiverMissing)
		return
	}

	if err := a.relayContactSubmission(c.Request.Context(), receiver, sub); err != nil {
		a.metrics.contactSubmissions.WithLabelValues("failed").Inc()
		a.log.Error("contact email send failed", "provider", a.mailer.ProviderName(), "err", err)
		writeAPIError(c, errContactDeliveryFailed)
		return
	}

	a.metrics.contactSubmissions.WithLabelValues("ok").Inc()
	a.log.Info("contact submission relayed", "provider", a.mailer.ProviderName())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// relayContactSubmission sends the operator notification and then the visitor
// confirmation. The first failure aborts, so the notification may already be
// delivered when an error is returned.
func (a *App) relayContactSubmission(ctx context.Context, receiver string, sub contactSubmission) error {
	if err := a.sendMail(ctx, buildContactNotification(receiver, sub)); err != nil {
		return err
	}

	confirmation, err := buildContactConfirmation(a.cfg.ContactSiteName, a.cfg.ContactSiteLocation, sub)
	if err != nil {
		return err
	}
	return a.sendMail(ctx, confirmation)
}

func (a *App) sendMail(ctx context.Context, msg mailer.Message) error {
	provider := a.mailer.ProviderName()
	if _, err := a.mailer.Send(ctx, msg); err != nil {
		a.metrics.mailSends.WithLabelValues(provider, "failed").Inc()
		return err
	}
	a.metrics.mailSends.WithLabelValues(provider, "sent").Inc()
	return nil
}
