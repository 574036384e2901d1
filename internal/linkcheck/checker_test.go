package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradu/emailqc/internal/model"
)

func TestCheck_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := New(Options{}).Check(context.Background(), srv.URL)

	assert.True(t, result.OK)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.False(t, result.Redirected)
	assert.Equal(t, srv.URL, result.FinalURL)
	assert.Empty(t, result.Notes)
}

func TestCheck_FollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/middle", http.StatusFound)
		case "/middle":
			http.Redirect(w, r, "/final", http.StatusMovedPermanently)
		case "/final":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	result := New(Options{}).Check(context.Background(), srv.URL+"/start")

	assert.True(t, result.OK)
	assert.True(t, result.Redirected)
	assert.Equal(t, srv.URL+"/final", result.FinalURL)
	assert.Equal(t, srv.URL+"/start", result.URL)
}

func TestCheck_TooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	hop := 0
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hop++
		http.Redirect(w, r, fmt.Sprintf("/hop%d", hop), http.StatusFound)
	}))
	defer srv.Close()

	result := New(Options{}).Check(context.Background(), srv.URL)

	assert.False(t, result.OK)
	assert.True(t, result.Redirected)
	assert.Equal(t, model.NoteTooManyRedirects, result.Notes)
}

func TestCheck_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := New(Options{}).Check(context.Background(), srv.URL)

	assert.False(t, result.OK)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Equal(t, model.NoteHTTPError, result.Notes)
}

func TestCheck_HeadFallsBackToGet(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawGet = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := New(Options{}).Check(context.Background(), srv.URL)

	assert.True(t, result.OK)
	assert.True(t, sawGet)
}

func TestCheck_NonHTTPLinks(t *testing.T) {
	c := New(Options{})

	for _, link := range []string{"mailto:support@tradu.com", "tel:+441234567890", "sms:+441234567890"} {
		result := c.Check(context.Background(), link)
		assert.True(t, result.OK, link)
		assert.Equal(t, model.NoteNonHTTPLink, result.Notes, link)
	}
}

func TestCheck_InvalidAndUnsupported(t *testing.T) {
	c := New(Options{})

	result := c.Check(context.Background(), "not a url")
	assert.False(t, result.OK)
	assert.Equal(t, model.NoteInvalidURL, result.Notes)

	result = c.Check(context.Background(), "ftp://files.example.com/doc.pdf")
	assert.False(t, result.OK)
	assert.Equal(t, model.NoteUnsupportedProtocol, result.Notes)
}

func TestCheck_DevHostDetected(t *testing.T) {
	c := New(Options{})

	result := c.Check(context.Background(), "https://wwwd.tradu.com/promo")
	assert.False(t, result.OK)
	assert.Equal(t, model.NoteDevDomainDetected, result.Notes)

	result = c.Check(context.Background(), "https://staging.tradu.com/promo")
	assert.False(t, result.OK)
	assert.Equal(t, model.NoteDevDomainDetected, result.Notes)
}

func TestCheck_UnapprovedDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{ApprovedDomains: []string{"tradu.com"}})
	result := c.Check(context.Background(), srv.URL)

	assert.False(t, result.OK)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, model.NoteUnapprovedDomain, result.Notes)
}

func TestCheck_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // probe a dead server

	result := New(Options{}).Check(context.Background(), srv.URL)

	assert.False(t, result.OK)
	assert.Equal(t, model.NoteNoResponse, result.Notes)
}

func TestCheckAll_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	urls := []string{
		srv.URL + "/a",
		"mailto:hello@tradu.com",
		srv.URL + "/missing",
		srv.URL + "/b",
	}

	results := New(Options{Concurrency: 2}).CheckAll(context.Background(), urls)
	require.Len(t, results, 4)

	assert.Equal(t, urls[0], results[0].URL)
	assert.True(t, results[0].OK)
	assert.Equal(t, model.NoteNonHTTPLink, results[1].Notes)
	assert.False(t, results[2].OK)
	assert.True(t, results[3].OK)
}

func TestHostnameApproved(t *testing.T) {
	c := New(Options{ApprovedDomains: []string{"tradu.com", " Braze.EU "}})

	assert.True(t, c.hostnameApproved("tradu.com"))
	assert.True(t, c.hostnameApproved("www.tradu.com"))
	assert.True(t, c.hostnameApproved("dashboard.braze.eu"))
	assert.False(t, c.hostnameApproved("tradu.com.evil.net"))
	assert.False(t, c.hostnameApproved("other.com"))
}
