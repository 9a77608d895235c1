package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

var (
	errInvalidJSON        = &apiError{Status: http.StatusBadRequest, Code: "invalid_json", Message: "invalid json"}
	errContentTooLarge    = &apiError{Status: http.StatusRequestEntityTooLarge, Code: "content_too_large", Message: "content too large"}
	errContentUnavailable = &apiError{Status: http.StatusInternalServerError, Code: "storage_unavailable", Message: "content is unavailable right now"}
	errContentSaveFailed  = &apiError{Status: http.StatusInternalServerError, Code: "storage_unavailable", Message: "unable to save content right now"}
	emptyContentDocument  = json.RawMessage(`{}`)
)

// loadDefaultContent reads the seed document. A missing or invalid file yields {}.
func loadDefaultContent(path string, logger *slog.Logger) json.RawMessage {
	if path == "" {
		return emptyContentDocument
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read default content", "path", path, "err", err)
		}
		return emptyContentDocument
	}
	doc, err := normalizeContentDocument(raw)
	if err != nil {
		logger.Warn("default content is not valid JSON; seeding an empty document", "path", path)
		return emptyContentDocument
	}
	return doc
}

// normalizeContentDocument validates raw as a JSON document and compacts it.
// A bare null is rejected along with syntax errors.
func normalizeContentDocument(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || !json.Valid(trimmed) {
		return nil, errInvalidJSON
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, errInvalidJSON
	}
	return json.RawMessage(buf.Bytes()), nil
}

// loadSiteContent returns the stored document, seeding the default one first if absent.
func (a *App) loadSiteContent(ctx context.Context) (json.RawMessage, error) {
	doc, err := a.content.Get(ctx)
	if !errors.Is(err, ErrContentNotFound) {
		return doc, err
	}
	if err := a.content.EnsureSeeded(ctx, a.defaultContent); err != nil {
		return nil, err
	}
	return a.content.Get(ctx)
}

// contentGetHandler returns the raw site content document.
// Method: GET /api/content
// Access: Public
func (a *App) contentGetHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	doc, err := a.loadSiteContent(ctx)
	if err != nil {
		a.log.Error("failed to load site content", "err", err)
		writeAPIError(c, errContentUnavailable)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// contentUpdateHandler replaces the whole site content document.
// Method: POST /api/content
// Access: Bearer admin token
func (a *App) contentUpdateHandler(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxContentBytes+1))
	if err != nil {
		a.metrics.contentWrites.WithLabelValues("invalid").Inc()
		writeAPIError(c, errInvalidJSON)
		return
	}
	if len(raw) > maxContentBytes {
		a.metrics.contentWrites.WithLabelValues("invalid").Inc()
		writeAPIError(c, errContentTooLarge)
		return
	}

	doc, err := normalizeContentDocument(raw)
	if err != nil {
		a.metrics.contentWrites.WithLabelValues("invalid").Inc()
		writeAPIError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()
	if err := a.content.Put(ctx, doc); err != nil {
		a.metrics.contentWrites.WithLabelValues("failed").Inc()
		a.log.Error("failed to save site content", "err", err)
		writeAPIError(c, errContentSaveFailed)
		return
	}

	a.metrics.contentWrites.WithLabelValues("ok").Inc()
	a.log.Info("site content replaced", "bytes", len(doc))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
