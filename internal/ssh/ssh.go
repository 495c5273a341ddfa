// Package ssh runs deployment commands on a target host over SSH.
//
// The Client connects lazily on the first command, retrying the dial with
// exponential backoff. Authentication and host key failures are not retried.
// The connection is then reused for every following command of the
// deployment until Close.
//
// Security: host keys are verified against KnownHostsFile when one is
// configured; otherwise host key checking is disabled.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/danieljhkim/osdeploy/internal/executor"
	"github.com/danieljhkim/osdeploy/internal/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// KnownHostsFile enables host key verification against an OpenSSH
	// known_hosts file.
	KnownHostsFile string

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of dial retries.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between dial retries.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration
}

// Client runs commands on one host. It is not safe for concurrent use.
type Client struct {
	config   Config
	signer   ssh.Signer
	hostKeys ssh.HostKeyCallback
	log      logr.Logger

	conn *ssh.Client
}

var _ executor.Shell = (*Client)(nil)

// NewClient validates cfg, parses the private key and returns a Client.
// No connection is made until the first Run.
func NewClient(cfg *Config, log logr.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	c := *cfg
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}

	signer, err := ssh.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via KnownHostsFile
	if c.KnownHostsFile != "" {
		hostKeys, err = knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", c.KnownHostsFile, err)
		}
	}

	return &Client{
		config:   c,
		signer:   signer,
		hostKeys: hostKeys,
		log:      log.WithValues("host", c.Host),
	}, nil
}

// Addr returns the host:port the client connects to.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// User returns the remote login user.
func (c *Client) User() string {
	return c.config.User
}

// Run executes command on the host, feeding it stdin when non-nil.
// A non-zero exit status is reported in the Output, not as an error.
func (c *Client) Run(ctx context.Context, command string, stdin io.Reader) (executor.Output, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return executor.Output{}, err
	}

	session, err := conn.NewSession()
	if err != nil {
		return executor.Output{}, fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	c.log.V(4).Info("running command", "command", command)

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return executor.Output{}, fmt.Errorf("command cancelled on %s: %w", c.config.Host, ctx.Err())
	case err = <-done:
	}

	out := executor.Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return out, fmt.Errorf("command failed on %s: %w", c.config.Host, err)
		}
		out.RC = exitErr.ExitStatus()
	}

	return out, nil
}

// Close closes the connection, if one was made.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connect returns the open connection, dialing with retry when there is none.
func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: c.hostKeys,
		Timeout:         c.config.DialTimeout,
	}

	addr := c.Addr()
	err := retry.Do(ctx, func() error {
		c.log.V(2).Info("dialing", "addr", addr)
		conn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			if isAuthError(err) {
				return retry.Permanent(err)
			}
			return err
		}
		c.conn = conn
		return nil
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	return c.conn, nil
}

// isAuthError reports failures that retrying cannot fix.
func isAuthError(err error) bool {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return true
	}
	return strings.Contains(err.Error(), "unable to authenticate")
}
