// Package client speaks the booking line protocol over TCP.  A Client is
// one connection and therefore one server-side session: logging in on it
// authenticates every later request on the same Client.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/iliyamo/seat-booking-server/internal/protocol"
)

// Client sends requests one at a time; concurrent calls are serialized.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *protocol.Encoder
	mu   sync.Mutex
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, dec: json.NewDecoder(conn), enc: protocol.NewEncoder(conn)}, nil
}

// Do sends req and waits for its response.  The context deadline, if any,
// bounds the round trip.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.Name == "" {
		req.Name = req.Action.String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline() // zero clears any earlier deadline
	_ = c.conn.SetDeadline(deadline)

	if err := c.enc.Encode(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Name, err)
	}
	var resp protocol.Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Name, err)
	}
	return resp, nil
}

// ResponseError is returned by the helpers below when the server answered
// with an error envelope.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string { return e.Code + ": " + e.Message }

func check(resp protocol.Response) error {
	if resp.IsOK() {
		return nil
	}
	return &ResponseError{Code: resp.Text("code"), Message: resp.Text("message")}
}

// Login authenticates the connection.
func (c *Client) Login(ctx context.Context, username, password string) error {
	req := protocol.NewRequest(protocol.ActionLogin)
	req.Username, req.Password = username, password
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return check(resp)
}

// Register creates an account.  It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	req := protocol.NewRequest(protocol.ActionRegister)
	req.Username, req.Password = username, password
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return check(resp)
}

// Book books a seat and returns the booking id.
func (c *Client) Book(ctx context.Context, seatID uint64) (uint64, error) {
	req := protocol.NewRequest(protocol.ActionBookSeat)
	req.SeatID = protocol.ID(seatID)
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	if err := check(resp); err != nil {
		return 0, err
	}
	id, ok := resp.Number("booking_id")
	if !ok {
		return 0, errors.New("response has no booking_id")
	}
	return id, nil
}

// Close closes the connection, ending the session.
func (c *Client) Close() error { return c.conn.Close() }
