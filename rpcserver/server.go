// Package rpcserver implements the RPC server loop: read frames from one
// connection, dispatch by method name to a registered handler, write
// responses, and drop fire-and-forget events silently.
//
// Requests on a single connection are processed strictly in receive order
// by a single goroutine; handlers never run concurrently against each
// other on the same connection.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"go.uber.org/zap"

	"dipc/envelope"
	"dipc/frame"
	"dipc/rpcerr"
)

// HandlerFunc is a registered RPC method handler. Its error becomes an
// ok:false response for Requests; for Events its return value (result and
// error alike) is discarded.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Middleware wraps a HandlerFunc with cross-cutting behavior (logging, rate
// limiting, timeouts, ...), composed in the order Use is called.
type Middleware func(HandlerFunc) HandlerFunc

// Server dispatches frames received on a connection to registered method
// handlers.
type Server struct {
	handlers    map[string]HandlerFunc
	middlewares []Middleware
	log         *zap.Logger
}

// New creates a server with an empty handler table.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

// On registers a handler for method. Registering the same method twice
// replaces the previous handler.
func (s *Server) On(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Use appends a middleware to the chain applied around every dispatched
// handler. Middlewares registered first wrap outermost.
func (s *Server) Use(mw Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

func (s *Server) chain() func(HandlerFunc) HandlerFunc {
	return func(h HandlerFunc) HandlerFunc {
		for i := len(s.middlewares) - 1; i >= 0; i-- {
			h = s.middlewares[i](h)
		}
		return h
	}
}

// Serve reads frames from conn until the peer closes or recv fails,
// dispatching each one in order on the calling goroutine. It closes conn
// before returning.
func (s *Server) Serve(conn net.Conn) error {
	defer conn.Close()

	wrap := s.chain()
	var decoder frame.Decoder
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)
		if n <= 0 || err != nil {
			return nil
		}

		frames := decoder.Feed(buf[:n])
		for _, f := range frames {
			if writeErr := s.handleFrame(conn, f, wrap); writeErr != nil {
				return writeErr
			}
		}
	}
}

func (s *Server) handleFrame(conn net.Conn, f frame.Frame, wrap func(HandlerFunc) HandlerFunc) error {
	isRequest := f.Header.MsgType == frame.MsgRequest
	isEvent := f.Header.MsgType == frame.MsgEvent

	if !isRequest && !isEvent {
		return nil
	}
	if isRequest && f.Header.RequestID == 0 {
		return nil
	}

	req, err := envelope.ParseRequestBody(f.Body)
	if err != nil {
		if isRequest {
			code := rpcerr.InternalError
			if rerr, ok := err.(*rpcerr.Error); ok {
				code = rerr.Code
			}
			return s.respond(conn, f.Header.RequestID, rpcerr.Err(code, err.Error()))
		}
		return nil
	}

	handler, found := s.handlers[req.Method]
	if !found {
		if isRequest {
			return s.respond(conn, f.Header.RequestID, rpcerr.Err(rpcerr.MethodNotFound, "method_not_found"))
		}
		return nil
	}

	result := s.invoke(wrap(handler), req.Method, req.Params)

	if isEvent {
		return nil
	}
	return s.respond(conn, f.Header.RequestID, result)
}

type methodCtxKey struct{}

// ContextMethod returns the RPC method name associated with the handler
// invocation carried by ctx, for middlewares that need it (e.g. logging).
func ContextMethod(ctx context.Context) (string, bool) {
	m, ok := ctx.Value(methodCtxKey{}).(string)
	return m, ok
}

// invoke calls the handler chain, recovering any panic. A returned
// *rpcerr.Error keeps its code and message; any other returned error, a
// recovered panic, or an unmarshalable result becomes an InternalError
// result.
func (s *Server) invoke(h HandlerFunc, method string, params json.RawMessage) (result rpcerr.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked", zap.Any("recover", r))
			result = rpcerr.Err(rpcerr.InternalError, "internal_error")
		}
	}()

	ctx := context.WithValue(context.Background(), methodCtxKey{}, method)
	data, err := h(ctx, params)
	if err != nil {
		s.log.Debug("handler returned error", zap.Error(err))
		if rerr, ok := err.(*rpcerr.Error); ok {
			return rpcerr.Err(rerr.Code, rerr.Message)
		}
		return rpcerr.Err(rpcerr.InternalError, "internal_error")
	}

	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error("failed to marshal handler result", zap.Error(err))
		return rpcerr.Err(rpcerr.InternalError, "internal_error")
	}
	return rpcerr.Ok(raw)
}

func (s *Server) respond(conn net.Conn, requestID uint64, result rpcerr.Result) error {
	body, err := envelope.NewResponseBody(result)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	wire := frame.Encode(frame.NewHeader(frame.MsgResponse, requestID), body)
	if _, err := conn.Write(wire); err != nil {
		s.log.Warn("failed to write response, terminating serve loop", zap.Error(err))
		return err
	}
	return nil
}
