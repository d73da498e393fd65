package cfddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/sirupsen/logrus"
)

// Credentials authenticate against the Cloudflare API.
// APIToken is used when set; otherwise Email and APIKey must both be set.
type Credentials struct {
	APIToken string
	Email    string
	APIKey   string
}

func (c Credentials) newAPI(opts ...cloudflare.Option) (*cloudflare.API, error) {
	switch {
	case c.APIToken != "":
		return cloudflare.NewWithAPIToken(c.APIToken, opts...)
	case c.Email != "" && c.APIKey != "":
		return cloudflare.New(c.APIKey, c.Email, opts...)
	}
	return nil, ErrNoCredentials
}

// Cloudflare constructs a Registry backed by the Cloudflare API.
//
// Extra options are handed to cloudflare-go, e.g. cloudflare.BaseURL.
// Requests are not retried: a rate limited update is reported as a rejected update.
// A client passed with cloudflare.HTTPClient loses the rate limit detection;
// use SetHTTPClient (or cfddns.UsingHTTPClient) instead.
func Cloudflare(creds Credentials, opts ...cloudflare.Option) (Registry, error) {
	opts = append([]cloudflare.Option{
		cloudflare.HTTPClient(recordingStatus(defaultHTTPClient)),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}, opts...)
	api, err := creds.newAPI(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return &cloudflareRegistry{api: api}, nil
}

// cloudflareRegistry implements cfddns.Registry.
type cloudflareRegistry struct {
	api *cloudflare.API
}

func (cf *cloudflareRegistry) SetLogger(logger logrus.FieldLogger) {
	_ = cloudflare.UsingLogger(logger)(cf.api)
}

func (cf *cloudflareRegistry) SetHTTPClient(c *http.Client) {
	_ = cloudflare.HTTPClient(recordingStatus(c))(cf.api)
}

func (cf *cloudflareRegistry) ListZones(ctx context.Context) ([]Zone, error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing zones: %w", err)
	}
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, Zone{ID: z.ID, Name: z.Name})
	}
	return out, nil
}

func (cf *cloudflareRegistry) ListRecords(ctx context.Context, zoneID string, recordType string) ([]Record, error) {
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: recordType,
	})
	if err != nil {
		return nil, fmt.Errorf("error listing DNS records for zone %s: %w", zoneID, err)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Record{ID: r.ID, Name: r.Name, Type: r.Type, Content: r.Content})
	}
	return out, nil
}

func (cf *cloudflareRegistry) UpdateRecord(ctx context.Context, zoneID string, recordID string, update RecordUpdate) (UpdateResult, error) {
	status := &responseStatus{}
	ctx = context.WithValue(ctx, responseStatusKey{}, status)
	_, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Type:    update.Type,
		Name:    update.Name,
		Content: update.Content,
	})
	if err == nil {
		return UpdateResult{Success: true}, nil
	}
	if errs := responseErrors(err); len(errs) > 0 {
		return UpdateResult{Success: false, Errors: errs}, nil
	}
	// cloudflare-go reports a 429 as a plain error without the response's error entries
	if status.code == http.StatusTooManyRequests {
		msg := "rate limited by the Cloudflare API"
		if status.retryAfter != "" {
			msg += "; retry after " + status.retryAfter + "s"
		}
		return UpdateResult{Success: false, Errors: []ResponseError{{Code: status.code, Message: msg}}}, nil
	}
	return UpdateResult{}, fmt.Errorf("error updating DNS record %s: %w", recordID, err)
}

// responseErrors extracts the error entries of an API response.
// It returns nil for errors that never got a structured answer from the API, e.g. network failures.
func responseErrors(err error) []ResponseError {
	var infos []cloudflare.ResponseInfo

	// the typed errors (RequestError, RatelimitError, ...) all expose their entries this way
	var typed interface{ Errors() []cloudflare.ResponseInfo }
	var cfErr *cloudflare.Error
	switch {
	case errors.As(err, &typed):
		infos = typed.Errors()
	case errors.As(err, &cfErr):
		infos = cfErr.Errors
	}

	out := make([]ResponseError, 0, len(infos))
	for _, i := range infos {
		out = append(out, ResponseError{Code: i.Code, Message: i.Message})
	}
	return out
}

type responseStatusKey struct{}

// responseStatus is filled in by statusTransport for requests whose context carries it.
type responseStatus struct {
	code       int
	retryAfter string
}

type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if s, ok := req.Context().Value(responseStatusKey{}).(*responseStatus); ok && resp != nil {
		s.code = resp.StatusCode
		s.retryAfter = strings.TrimSpace(resp.Header.Get("Retry-After"))
	}
	return resp, err
}

// recordingStatus returns a copy of c whose transport records response status codes.
func recordingStatus(c *http.Client) *http.Client {
	if _, ok := c.Transport.(statusTransport); ok {
		return c
	}
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped := *c
	wrapped.Transport = statusTransport{next: next}
	return &wrapped
}
