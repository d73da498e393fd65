package cfddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var discard logrus.FieldLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// defaultHTTPClient is shared by every component that was not given its own client,
// so all outbound calls reuse one connection pool.
var defaultHTTPClient = cleanhttp.DefaultPooledClient()

// New constructs a Client.
//
// A registry must be supplied with UsingCloudflare or UsingRegistry.
// Without UsingResolver or UsingWebResolver the client asks DefaultServices for its address.
// Logs are discarded unless WithLogger is given.
func New(options ...clientOption) (*Client, error) {
	c := &Client{}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("cfddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.registry == nil {
		return nil, fmt.Errorf("cfddns.New: no DNS registry was configured and there is no default - use cfddns.UsingCloudflare or similar")
	}
	if c.resolver == nil {
		r, err := WebResolver(DefaultServices...)
		if err != nil {
			return nil, fmt.Errorf("cfddns.New: %w", err)
		}
		c.resolver = r
	}

	// options may come in any order, so dependencies only learn about the logger and http client once all of them are registered
	c.propagate()
	return c, nil
}

type clientOption func(*Client) error

// UsingCloudflare registers Cloudflare as the DNS registry.
func UsingCloudflare(creds Credentials) clientOption {
	return func(c *Client) (err error) {
		if c.registry, err = Cloudflare(creds); err != nil {
			return fmt.Errorf("cfddns.UsingCloudflare: error creating cloudflare DNS registry: %w", err)
		}
		return nil
	}
}

func UsingRegistry(registry Registry) clientOption {
	return func(c *Client) error {
		c.registry = registry
		return nil
	}
}

// UsingResolver sets the resolver. A nil resolver restores the default.
func UsingResolver(resolver Resolver) clientOption {
	return func(c *Client) error {
		c.resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(c *Client) (err error) {
		c.resolver, err = WebResolver(serviceURL...)
		return err
	}
}

// LimitToDomain restricts management to records whose name ends with suffix.
// A blank suffix manages every A record in every zone.
func LimitToDomain(suffix string) clientOption {
	return func(c *Client) error {
		c.filter.Suffix = suffix
		return nil
	}
}

func WithLogger(logger logrus.FieldLogger) clientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used for every outbound request, both IP lookups and registry calls.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

func (c *Client) propagate() {
	if c.logger == nil {
		c.logger = discard
	}
	if c.httpClient == nil {
		c.httpClient = defaultHTTPClient
	}
	type setLogger interface {
		SetLogger(logrus.FieldLogger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	for _, dep := range []any{c.resolver, c.registry} {
		if l, ok := dep.(setLogger); ok {
			l.SetLogger(c.logger)
		}
		if h, ok := dep.(setHTTPClient); ok {
			h.SetHTTPClient(c.httpClient)
		}
	}
}

// Client reconciles the managed records of a registry with the resolved address.
type Client struct {
	resolver   Resolver
	registry   Registry
	filter     RecordFilter
	logger     logrus.FieldLogger
	httpClient *http.Client
}

// Reconcile runs one pass: it resolves the current address
// and updates every managed record that does not already hold it.
//
// Reconcile does not return errors.
// Anything that ends the pass early is logged and recorded in Report.Err,
// and a record the registry refuses to update is recorded as Failed without stopping the pass.
func (c *Client) Reconcile(ctx context.Context) (report Report) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
		report.Duration = time.Since(start)
		c.logReport(report)
	}()
	report.Err = c.reconcile(ctx, &report)
	return report
}

func (c *Client) reconcile(ctx context.Context, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := c.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("error resolving public address: %w", err)
	}
	if !addr.Is4() {
		return fmt.Errorf("resolved address %s is not IPv4 and cannot be stored in %s records", addr, ManagedType)
	}
	report.Address = addr
	c.logger.WithField("address", addr).Debug("got public address")

	if err := ctx.Err(); err != nil {
		return err
	}
	zones, err := c.registry.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("error listing zones: %w", err)
	}
	c.logger.WithField("zones", lo.Map(zones, func(z Zone, _ int) string { return z.Name })).Debug("found zones")

	for _, zone := range zones {
		if err := c.reconcileZone(ctx, zone, addr, report); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) reconcileZone(ctx context.Context, zone Zone, addr netip.Addr, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := c.registry.ListRecords(ctx, zone.ID, ManagedType)
	if err != nil {
		return fmt.Errorf("error listing %s records in zone %s: %w", ManagedType, zone.Name, err)
	}
	logger := c.logger.WithField("zone", zone.Name)
	logger.Debugf("found %d %s records", len(records), ManagedType)

	for _, r := range records {
		if reason := c.filter.Exclusion(r); reason != "" {
			logger.WithField("record", r.Name).Debugf("skipping record: %s", reason)
		}
	}
	for _, r := range c.filter.Filter(records) {
		o, err := c.reconcileRecord(ctx, zone, r, addr)
		if err != nil {
			return err
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	return nil
}

func (c *Client) reconcileRecord(ctx context.Context, zone Zone, rec Record, addr netip.Addr) (Outcome, error) {
	o := Outcome{Zone: zone, Record: rec}
	logger := c.logger.WithFields(logrus.Fields{"zone": zone.Name, "record": rec.Name})
	content := addr.String()

	if rec.Content == content {
		o.Action, o.Reason = Skipped, SkipAlreadyCurrent
		logger.WithField("address", content).Debug("record is already current")
		return o, nil
	}

	if err := ctx.Err(); err != nil {
		return o, err
	}
	res, err := c.registry.UpdateRecord(ctx, zone.ID, rec.ID, RecordUpdate{
		Type:    ManagedType,
		Name:    rec.Name,
		Content: content,
	})
	if err != nil {
		return o, fmt.Errorf("error updating record %s in zone %s: %w", rec.Name, zone.Name, err)
	}
	if !res.Success {
		o.Action, o.Err = Failed, &UpdateError{Errors: res.Errors}
		logger.WithField("errors", res.Errors).Error("registry rejected record update")
		return o, nil
	}

	o.Action = Updated
	logger.WithFields(logrus.Fields{"previous": rec.Content, "address": content}).Info("updated record")
	return o, nil
}

func (c *Client) logReport(r Report) {
	logger := c.logger.WithFields(logrus.Fields{
		"updated":  r.Count(Updated),
		"skipped":  r.Count(Skipped),
		"failed":   r.Count(Failed),
		"duration": r.Duration,
	})
	if errors.Is(r.Err, context.Canceled) {
		logger.Info("reconciliation pass cancelled")
		return
	}
	if r.Err != nil {
		logger.WithError(r.Err).Error("reconciliation pass aborted")
		return
	}
	if r.Count(Updated) > 0 || r.Count(Failed) > 0 {
		logger.Info("reconciliation pass finished")
		return
	}
	logger.Debug("reconciliation pass finished")
}
