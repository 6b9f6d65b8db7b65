package analyzer

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Transport is one connection to an analyzer process. It is created exactly
// once per session; a crashed transport is never replaced in place, the
// owning session is replaced instead.
type Transport interface {
	// Request sends a request and decodes the response into result.
	Request(ctx context.Context, method string, params, result interface{}) error
	// Notify sends a fire-and-forget notification.
	Notify(ctx context.Context, method string, params interface{}) error
	// Done is closed when the connection ends, whether by Close or by a
	// crash of the analyzer process.
	Done() <-chan struct{}
	// Err returns the terminal connection error once Done is closed.
	Err() error
	// Close shuts the connection down, awaiting process exit.
	Close(ctx context.Context) error
}

// Config describes how to start the analyzer process.
type Config struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type transport struct {
	conn   jsonrpc2.Conn
	cmd    *exec.Cmd
	logger *zap.SugaredLogger
}

// Spawn starts the analyzer process for a workspace folder and returns a
// Transport speaking JSON-RPC over its stdio. A spawn failure means the
// platform cannot run the analyzer; the caller marks the session unsupported.
func Spawn(ctx context.Context, cfg Config, handler jsonrpc2.Handler, logger *zap.SugaredLogger) (Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("analyzer command is not configured")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening analyzer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening analyzer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting analyzer %q: %w", cfg.Command, err)
	}

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(stdioPipe{in: stdin, out: stdout}))
	t := &transport{
		conn:   conn,
		cmd:    cmd,
		logger: logger,
	}
	conn.Go(ctx, handler)

	// Reap the process once the connection ends so it never lingers.
	go func() {
		<-conn.Done()
		if err := cmd.Wait(); err != nil {
			logger.Infow("analyzer process exited", "command", cfg.Command, "error", err)
		}
	}()

	return t, nil
}

// NewConnTransport wraps an already established JSON-RPC connection. Used
// when the analyzer is reached over a socket rather than spawned locally,
// and by tests.
func NewConnTransport(conn jsonrpc2.Conn, logger *zap.SugaredLogger) Transport {
	return &transport{conn: conn, logger: logger}
}

func (t *transport) Request(ctx context.Context, method string, params, result interface{}) error {
	if _, err := t.conn.Call(ctx, method, params, result); err != nil {
		return fmt.Errorf("analyzer request %q: %w", method, err)
	}
	return nil
}

func (t *transport) Notify(ctx context.Context, method string, params interface{}) error {
	if err := t.conn.Notify(ctx, method, params); err != nil {
		return fmt.Errorf("analyzer notification %q: %w", method, err)
	}
	return nil
}

func (t *transport) Done() <-chan struct{} {
	return t.conn.Done()
}

func (t *transport) Err() error {
	return t.conn.Err()
}

func (t *transport) Close(ctx context.Context) error {
	err := t.conn.Close()
	select {
	case <-t.conn.Done():
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

// stdioPipe joins a process's stdin and stdout into one io.ReadWriteCloser.
type stdioPipe struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (p stdioPipe) Read(b []byte) (int, error) {
	return p.out.Read(b)
}

func (p stdioPipe) Write(b []byte) (int, error) {
	return p.in.Write(b)
}

func (p stdioPipe) Close() error {
	return multierr.Append(p.in.Close(), p.out.Close())
}
