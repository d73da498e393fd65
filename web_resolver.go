package cfddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultServices are the public IP echo services used when no others are configured, in priority order.
var DefaultServices = []string{
	"https://ipecho.net/plain",
	"https://icanhazip.com/",
	"https://whatismyip.akamai.com",
	"https://tnx.nl/ip",
}

// WebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return a 2xx status
// with a valid IPv4 or IPv6 address as the response body.
// Tabs, carriage returns and newlines are removed from the body before parsing.
// All other responses are considered an error.
//
// Services are asked one at a time in the order given.
// The first usable answer wins and the remaining services are not contacted,
// so the list doubles as the retry strategy: a failing service is never asked twice in one call.
func WebResolver(serviceURL ...string) (Resolver, error) {
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return nil, fmt.Errorf("unsupported scheme in %q", u)
		}
		URLs = append(URLs, pu)
	}
	return &webResolver{serviceURLs: URLs}, nil
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []*url.URL
	logger      logrus.FieldLogger
}

func (wr *webResolver) SetLogger(logger logrus.FieldLogger) { wr.logger = logger }

func (wr *webResolver) SetHTTPClient(c *http.Client) { wr.httpClient = c }

// Resolve implements cfddns.Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no external IP lookup services were provided", ErrNoAddress)
	}
	logger := wr.logger
	if logger == nil {
		logger = discard
	}

	var errs []error
	for _, u := range wr.serviceURLs {
		if err := ctx.Err(); err != nil {
			return netip.Addr{}, err
		}
		addr, err := wr.lookup(ctx, u)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return netip.Addr{}, ctxErr
			}
			logger.WithField("provider", u.String()).WithError(err).Debug("ip provider failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		logger.WithFields(logrus.Fields{"provider": u.String(), "address": addr}).Debug("resolved public address")
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: every IP provider failed: %w", ErrNoAddress, errors.Join(errs...))
}

// maxBodySize bounds how much of a response is read; an address literal is far shorter.
const maxBodySize = 1 << 10

var unwantedChars = strings.NewReplacer("\t", "", "\n", "", "\r", "")

func (wr *webResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to resolve will eventually complete even if the user supplied context.Background
	// with a client that has no timeout.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading response body: %w", err)
	}
	ip, err := netip.ParseAddr(unwantedChars.Replace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip.Unmap(), nil
}
