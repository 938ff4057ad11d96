// Package datastore delivers close-call events to a REST datastore.
package datastore

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

// AuthTokenHeader carries the datastore token.
const AuthTokenHeader = "X-Auth-Token"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Sink POSTs each payload to the datastore endpoint.
type Sink struct {
	url    string
	token  string
	client *http.Client
	logger logging.Logger
}

// New returns a Sink for `cfg`. A zero Timeout leaves requests unbounded.
func New(cfg config.DatastoreConfig, logger logging.Logger) *Sink {
	return &Sink{
		url:    cfg.Server,
		token:  cfg.AuthToken,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns "datastore".
func (s *Sink) Name() string {
	return "datastore"
}

// Send POSTs `payload` as JSON. Any non-2xx response is an error.
func (s *Sink) Send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "cannot build datastore request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set(AuthTokenHeader, s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "datastore request failed")
	}
	defer utils.UncheckedErrorFunc(resp.Body.Close)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		s.logger.Debugw("failed to read datastore response", "error", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("datastore returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}

// Close releases idle connections.
func (s *Sink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
