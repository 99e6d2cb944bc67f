package ipc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"syscall"
	"time"
)

// Client calls a daemon's IPC server.
type Client struct {
	client *rpc.Client
}

// Dial connects to the socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, wrapDialError(err, path)
	}
	return &Client{client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// ErrDaemonNotRunning is returned by Dial when nothing listens on the socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

func wrapDialError(err error, path string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("socket %s not found (start it with scribe daemon run): %w", path, ErrDaemonNotRunning)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("socket %s refused the connection: %w", path, ErrDaemonNotRunning)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Status fetches the daemon's runtime state.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(serviceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause stops the workers. Jobs in flight are failed as cancelled.
func (c *Client) Pause() (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call(serviceName+".Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume restarts paused workers.
func (c *Client) Resume() (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.client.Call(serviceName+".Resume", ResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
