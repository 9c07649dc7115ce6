// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the provider descriptor consumed by the streaming
// engine and the URL joining rule that turns a provider's base URL and
// request path into a request target.
package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRequestPath is returned when a provider's request path cannot be
// resolved against its base URL.
var ErrInvalidRequestPath = errors.New("invalid request path")

// Config describes one upstream chat completion provider.
type Config struct {
	ID          string
	Name        string
	APIKey      string
	BaseURL     string
	RequestPath string
	Enabled     bool
}

// Resolver resolves a provider id to its configuration. Disabled or unknown
// providers do not resolve; absence is reported through ok, not an error.
type Resolver interface {
	ProviderByID(id string) (Config, bool)
}

// RequestURL joins the provider's base URL and request path into the
// fully-qualified request target.
//
// The base URL is normalized to end with a slash, and a request path that
// starts with "/" is rewritten document-relative ("." + path) before
// resolution, so "/v1/chat" against "https://host/api" yields
// "https://host/api/v1/chat" rather than clobbering the base path.
func RequestURL(cfg Config) (string, error) {
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	requestPath := cfg.RequestPath
	if strings.HasPrefix(requestPath, "/") {
		requestPath = "." + requestPath
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s for provider %s: %v", ErrInvalidRequestPath, cfg.RequestPath, cfg.ID, err)
	}
	ref, err := url.Parse(requestPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s for provider %s: %v", ErrInvalidRequestPath, cfg.RequestPath, cfg.ID, err)
	}

	return base.ResolveReference(ref).String(), nil
}
