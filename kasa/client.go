package kasa

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPort is the port every device listens on.
	DefaultPort = 9999
	// DefaultTimeout bounds one exchange when using DefaultClient.
	DefaultTimeout = 5 * time.Second
	// MaxResponseSize caps the length header we are willing to honour.
	MaxResponseSize = 1 << 20
)

// Client performs request/response exchanges with devices. A Client has no
// per-connection state and is safe for concurrent use.
type Client struct {
	// Port is used for addresses that do not carry one, DefaultPort when
	// zero.
	Port int
	// Timeout bounds a whole exchange, dial included. Zero means only the
	// context can end it.
	Timeout time.Duration
	// Debug logs every command and response.
	Debug bool
}

// DefaultClient is used by plugs created without WithClient.
var DefaultClient = &Client{Port: DefaultPort, Timeout: DefaultTimeout}

// Execute sends cmd to the device at addr ("host" or "host:port") and returns
// its parsed response.
//
// A response carrying a non-zero err_code, at module or action level, is
// returned as a DeviceRejected error.
func (c *Client) Execute(ctx context.Context, addr string, cmd Value) (Value, error) {
	return c.execute(ctx, addr, "", cmd)
}

func (c *Client) address(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	return net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(port))
}

func (c *Client) execute(ctx context.Context, addr string, op string, cmd Value) (Value, error) {
	addr = c.address(addr)
	fail := func(kind ErrorKind, err error) (Value, error) {
		return Value{}, &Error{Kind: kind, Op: op, Addr: addr, Err: err}
	}

	req, err := cmd.MarshalJSON()
	if err != nil {
		return Value{}, fmt.Errorf("encoding command: %w", err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var dialer net.Dialer
	con, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail(ConnectionFailed, err)
	}
	defer con.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := con.SetDeadline(deadline); err != nil {
			return fail(ConnectionFailed, err)
		}
	}

	// Unblock pending reads and writes when the context ends early. An error
	// here means the connection is already closed, so reads fail anyway.
	stop := context.AfterFunc(ctx, func() {
		_ = con.SetDeadline(time.Now())
	})
	defer stop()

	if c.Debug {
		log.Printf("%s > (%d) %s\n", addr, len(req), req)
	}

	_, err = con.Write(Encrypt(req))
	if err != nil {
		return fail(ConnectionFailed, err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(con, header); err != nil {
		return fail(readErrorKind(err), fmt.Errorf("reading header: %w", err))
	}

	size := binary.BigEndian.Uint32(header)
	if size > MaxResponseSize {
		return fail(MalformedResponse, fmt.Errorf("announced %d bytes, limit is %d", size, MaxResponseSize))
	}

	body := make([]byte, size)
	if n, err := io.ReadFull(con, body); err != nil {
		return fail(readErrorKind(err), fmt.Errorf("read %d of %d bytes: %w", n, size, err))
	}

	plain := Decrypt(body)
	if c.Debug {
		log.Printf("%s < (%d) %s\n", addr, len(plain), plain)
	}

	resp, err := ParseValue(plain)
	if err != nil {
		return fail(MalformedResponse, err)
	}

	if resp.Kind() != KindObject {
		return fail(MalformedResponse, fmt.Errorf("expected object, got %s", resp.Kind()))
	}

	if err := rejection(resp); err != nil {
		err.Addr = addr
		return Value{}, err
	}

	return resp, nil
}

// A closed connection before all announced bytes arrived is a truncated
// response, anything else went wrong on the network.
func readErrorKind(err error) ErrorKind {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return TruncatedResponse
	}

	return ConnectionFailed
}

// rejection finds the first non-zero err_code in a response.
func rejection(resp Value) *Error {
	modules, _ := resp.Object()

	for _, module := range modules.Keys() {
		m := resp.Get(module)
		if err := rejected(m, module); err != nil {
			return err
		}

		actions, ok := m.Object()
		if !ok {
			continue
		}

		for _, action := range actions.Keys() {
			if err := rejected(m.Get(action), module+"/"+action); err != nil {
				return err
			}
		}
	}

	return nil
}

func rejected(v Value, op string) *Error {
	code, ok := v.Get("err_code").Int()
	if !ok || code == 0 {
		return nil
	}

	msg, ok := v.Get("err_msg").Str()
	if !ok {
		msg, _ = v.Get("msg").Str()
	}

	return &Error{Kind: DeviceRejected, Op: op, Code: int(code), Msg: msg}
}
