package ipc

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Client sends requests to a FIFO server and waits for the answer on a pipe
// of its own.
type Client struct {
	serverPath   string
	clientFormat string
	pid          int32
}

// NewClient creates a client identified by the current process id.
func NewClient(serverPath, clientFormat string) *Client {
	return &Client{serverPath: serverPath, clientFormat: clientFormat, pid: int32(os.Getpid())}
}

// WithPID overrides the id used to name the reply pipe.
func (c *Client) WithPID(pid int32) *Client {
	c.pid = pid
	return c
}

// Do sends req and returns the server's response. The reply pipe is created
// before sending and removed afterwards.
func (c *Client) Do(ctx context.Context, req *Request) (Response, error) {
	req.ClientPID = c.pid
	replyPath := fmt.Sprintf(c.clientFormat, c.pid)

	_ = os.Remove(replyPath)
	if err := unix.Mkfifo(replyPath, 0o666); err != nil {
		return Response{}, fmt.Errorf("create reply pipe %s: %w", replyPath, err)
	}
	defer func() { _ = os.Remove(replyPath) }()

	if err := c.send(req); err != nil {
		return Response{}, err
	}

	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.receive(replyPath)
		done <- outcome{resp, err}
	}()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		// Unblock the pending open so the goroutine can finish.
		if f, err := os.OpenFile(replyPath, os.O_WRONLY|unix.O_NONBLOCK, 0); err == nil {
			_ = f.Close()
		}
		return Response{}, ctx.Err()
	}
}

func (c *Client) send(req *Request) error {
	f, err := os.OpenFile(c.serverPath, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("server pipe %s not found, is the server running: %w", c.serverPath, err)
		}
		return fmt.Errorf("open server pipe: %w", err)
	}
	defer func() { _ = f.Close() }()

	return WriteRequest(f, req)
}

func (c *Client) receive(replyPath string) (Response, error) {
	f, err := os.OpenFile(replyPath, os.O_RDONLY, 0)
	if err != nil {
		return Response{}, fmt.Errorf("open reply pipe: %w", err)
	}
	defer func() { _ = f.Close() }()

	resp, err := ReadResponse(f)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
