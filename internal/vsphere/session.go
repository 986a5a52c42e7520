package vsphere

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/performance"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/session/keepalive"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 200 * time.Second
	// DefaultKeepAlive is the interval between two keep-alive requests on
	// an otherwise idle session.
	DefaultKeepAlive = 10 * time.Minute
)

// Config holds what is needed to reach a vCenter or ESXi endpoint.
type Config struct {
	URL      string
	Username string
	Password string
	// Insecure skips TLS certificate verification for this session only.
	Insecure bool
	Timeout  time.Duration

	// KeepAlive is the idle interval after which a keep-alive request is
	// sent on the logged-in session.
	KeepAlive time.Duration
}

// Session owns one logged-in vSphere client and the root service content.
// The handles are established on first use and dropped when the endpoint
// reports the session as no longer authenticated, so the next call logs in
// again. A Session is not safe for concurrent use; give every concurrent
// caller its own Session.
type Session struct {
	cfg     Config
	client  once[*govmomi.Client]
	content once[*types.ServiceContent]
	metrics once[*Metrics]
}

func NewSession(cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	return &Session{cfg: cfg}
}

// Client returns the logged-in client, connecting on first use.
func (s *Session) Client(ctx context.Context) (*govmomi.Client, error) {
	return s.client.get(func() (*govmomi.Client, error) {
		return s.connect(ctx)
	})
}

// Content returns the root service content of the connected endpoint.
func (s *Session) Content(ctx context.Context) (*types.ServiceContent, error) {
	return s.content.get(func() (*types.ServiceContent, error) {
		c, err := s.Client(ctx)
		if err != nil {
			return nil, err
		}
		content := c.ServiceContent
		return &content, nil
	})
}

func (s *Session) Vim25(ctx context.Context) (*vim25.Client, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Client, nil
}

// Version reports the API version string of the endpoint, e.g. "7.0.3".
func (s *Session) Version(ctx context.Context) (string, error) {
	content, err := s.Content(ctx)
	if err != nil {
		return "", err
	}
	return content.About.Version, nil
}

// Metrics returns the performance query helper bound to this session. Its
// counter catalog is fetched once per session.
func (s *Session) Metrics(ctx context.Context) (*Metrics, error) {
	return s.metrics.get(func() (*Metrics, error) {
		c, err := s.Vim25(ctx)
		if err != nil {
			return nil, err
		}
		return NewMetrics(performance.NewManager(c)), nil
	})
}

// CheckConnected reports whether the cached session is usable, logging in
// again when it has expired. Every error is logged and swallowed.
func (s *Session) CheckConnected(ctx context.Context) bool {
	err := s.Retry(ctx, func() error {
		c, err := s.Client(ctx)
		if err != nil {
			return err
		}
		current, err := c.SessionManager.UserSession(ctx)
		if err != nil {
			return err
		}
		if current == nil {
			return errNotAuthenticated
		}
		return nil
	})
	if err != nil {
		zap.S().Named("session").Errorf("connect to vSphere failed, url: %s, username: %s, reason: %v", redact(s.cfg.URL), s.cfg.Username, err)
		return false
	}
	return true
}

// Retry runs fn and, when it fails because the session is no longer
// authenticated, drops the cached handles and runs fn once more. fn must
// fetch its handles from the Session so the second run logs in again.
func (s *Session) Retry(ctx context.Context, fn func() error) error {
	err := fn()
	if !IsNotAuthenticated(err) || ctx.Err() != nil {
		return err
	}
	zap.S().Named("session").Infof("vSphere session for %s expired, logging in again", redact(s.cfg.URL))
	s.invalidate()
	return fn()
}

// invalidate forgets the cached handles without logging out; the remote
// session is already gone.
func (s *Session) invalidate() {
	if s.client.set {
		c := s.client.value
		if h, ok := c.RoundTripper.(*keepalive.HandlerSOAP); ok {
			h.Stop()
		}
		c.CloseIdleConnections()
	}
	s.client.reset()
	s.content.reset()
	s.metrics.reset()
}

// Logout ends the remote session, if any, and forgets the cached handles.
func (s *Session) Logout(ctx context.Context) error {
	if !s.client.set {
		return nil
	}
	c := s.client.value
	s.client.reset()
	s.content.reset()
	s.metrics.reset()
	err := c.Logout(ctx)
	c.CloseIdleConnections()
	return err
}

func (s *Session) connect(ctx context.Context) (*govmomi.Client, error) {
	u, err := parseURL(s.cfg)
	if err != nil {
		return nil, NewConnectionError(redact(s.cfg.URL), err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	soapClient := soap.NewClient(u, s.cfg.Insecure)
	soapClient.Timeout = s.cfg.Timeout

	vimClient, err := vim25.NewClient(ctx, soapClient)
	if err != nil {
		return nil, NewConnectionError(u.Host, err)
	}
	// Keep-alive requests start on login and stop on logout.
	vimClient.RoundTripper = keepalive.NewHandlerSOAP(vimClient.RoundTripper, s.cfg.KeepAlive, nil)
	client := &govmomi.Client{
		SessionManager: session.NewManager(vimClient),
		Client:         vimClient,
	}

	zap.S().Named("session").Debugf("logging into %s", u.Host)
	if err := client.Login(ctx, u.User); err != nil {
		return nil, NewConnectionError(u.Host, errors.Wrap(err, "login"))
	}
	return client, nil
}

// parseURL defaults the SDK path and attaches the configured credentials.
// Credentials embedded in the URL are kept when no username is configured.
func parseURL(cfg Config) (*url.URL, error) {
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.Errorf("url %q has no host", redact(cfg.URL))
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/sdk"
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u, nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
