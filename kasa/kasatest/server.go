// Package kasatest provides a fake device listening on loopback, for tests
// of code talking to smart plugs.
package kasatest

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"hs100/kasa"
)

// HandlerFunc answers one decoded command.
type HandlerFunc func(req kasa.Value) kasa.Value

// RawHandlerFunc gets the decrypted request body and writes whatever it
// wants to con, including nothing at all.
type RawHandlerFunc func(con net.Conn, req []byte)

type Server struct {
	// Addr is host:port of the listener
	Addr string

	listener net.Listener
	handle   RawHandlerFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	requests []kasa.Value
}

// NewServer starts a server answering every command with the Value returned
// by h, framed and obfuscated like a real device.
func NewServer(h HandlerFunc) *Server {
	s := listen()
	s.handle = func(con net.Conn, req []byte) {
		v, err := kasa.ParseValue(req)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, v)
		s.mu.Unlock()

		resp, err := h(v).MarshalJSON()
		if err != nil {
			return
		}
		WriteResponse(con, resp)
	}
	s.start()

	return s
}

// NewRawServer starts a server that hands every request to h.
func NewRawServer(h RawHandlerFunc) *Server {
	s := listen()
	s.handle = h
	s.start()

	return s
}

func listen() *Server {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("kasatest: failed to listen: %v", err))
	}

	return &Server{Addr: l.Addr().String(), listener: l}
}

func (s *Server) start() {
	s.wg.Add(1)
	go s.serve()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		con, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer con.Close()

			req, err := ReadRequest(con)
			if err != nil {
				return
			}
			s.handle(con, req)
		}()
	}
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr)
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr)
	p, _ := strconv.Atoi(port)
	return p
}

// Requests returns the commands received so far. Only servers created with
// NewServer record them.
func (s *Server) Requests() []kasa.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := make([]kasa.Value, len(s.requests))
	copy(requests, s.requests)

	return requests
}

// Close stops listening and waits for open connections to finish.
func (s *Server) Close() {
	s.listener.Close()
	s.wg.Wait()
}

// ReadRequest reads one framed command and returns it decrypted.
func ReadRequest(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return kasa.Decrypt(body), nil
}

// WriteResponse frames and obfuscates plaintext the way a device does.
func WriteResponse(w io.Writer, plaintext []byte) error {
	_, err := w.Write(kasa.Encrypt(plaintext))
	return err
}
