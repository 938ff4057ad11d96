package datastore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/closecall/config"
	"go.viam.com/closecall/logging"
)

type request struct {
	method      string
	contentType string
	token       string
	body        string
}

func newServer(t *testing.T, status int, requests chan<- request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- request{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			token:       r.Header.Get(AuthTokenHeader),
			body:        string(body),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("quota exceeded\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendPosts(t *testing.T) {
	requests := make(chan request, 1)
	srv := newServer(t, http.StatusCreated, requests)
	s := New(config.DatastoreConfig{Server: srv.URL, AuthToken: "secret"}, logging.NewTestLogger(t))
	test.That(t, s.Name(), test.ShouldEqual, "datastore")

	payload := `{"message":"object-detected 2015-06-01T19:30:45Z","location":"No GPS Data"}`
	test.That(t, s.Send(context.Background(), []byte(payload)), test.ShouldBeNil)

	req := <-requests
	test.That(t, req.method, test.ShouldEqual, http.MethodPost)
	test.That(t, req.contentType, test.ShouldEqual, "application/json")
	test.That(t, req.token, test.ShouldEqual, "secret")
	test.That(t, req.body, test.ShouldEqual, payload)
	test.That(t, s.Close(), test.ShouldBeNil)
}

func TestSendWithoutToken(t *testing.T) {
	requests := make(chan request, 1)
	srv := newServer(t, http.StatusOK, requests)
	s := New(config.DatastoreConfig{Server: srv.URL}, logging.NewTestLogger(t))
	test.That(t, s.Send(context.Background(), []byte("{}")), test.ShouldBeNil)
	test.That(t, (<-requests).token, test.ShouldEqual, "")
}

func TestSendRejectsNon2xx(t *testing.T) {
	requests := make(chan request, 1)
	srv := newServer(t, http.StatusTooManyRequests, requests)
	s := New(config.DatastoreConfig{Server: srv.URL}, logging.NewTestLogger(t))

	err := s.Send(context.Background(), []byte("{}"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "429")
	test.That(t, err.Error(), test.ShouldContainSubstring, "quota exceeded")
	<-requests
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := New(config.DatastoreConfig{Server: srv.URL, Timeout: 50 * time.Millisecond}, logging.NewTestLogger(t))
	err := s.Send(context.Background(), []byte("{}"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "datastore request failed")
}

func TestSendUnreachable(t *testing.T) {
	s := New(config.DatastoreConfig{Server: "http://127.0.0.1:1"}, logging.NewTestLogger(t))
	test.That(t, s.Send(context.Background(), []byte("{}")), test.ShouldNotBeNil)
}
