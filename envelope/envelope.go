// Package envelope defines the JSON object carried in a frame's body: the
// method/params shape for requests and events, and the ok/data/error shape
// for responses. It is the only codec this wire version accepts
// (frame.CodecJSON); there is no pluggable codec layer above it.
package envelope

import (
	"encoding/json"

	"dipc/rpcerr"
)

// emptyObject is the default params/data value when the field is absent or
// null in an incoming body.
var emptyObject = json.RawMessage("{}")

// RequestBody is the body of a Request or Event frame.
type RequestBody struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequestBody builds a request/event body, marshaling params and
// defaulting a nil/unset value to an empty object.
func NewRequestBody(method string, params any) (RequestBody, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return RequestBody{}, err
	}
	return RequestBody{Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return emptyObject, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		if len(raw) == 0 {
			return emptyObject, nil
		}
		return raw, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return emptyObject, nil
	}
	return json.RawMessage(b), nil
}

// responseError mirrors the wire error object inside a failed response.
// Code/Message are pointers on the parse side so a genuinely absent field
// can be told apart from an explicit zero value/empty string.
type responseError struct {
	Code    *int    `json:"code"`
	Message *string `json:"message"`
}

// wireResponse mirrors the full on-wire response shape for marshaling and
// unmarshaling.
type wireResponse struct {
	OK    *bool           `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *responseError  `json:"error,omitempty"`
}

// NewResponseBody serializes an rpcerr.Result into the wire response shape.
func NewResponseBody(result rpcerr.Result) ([]byte, error) {
	ok := result.OK
	w := wireResponse{OK: &ok}
	if result.OK {
		data := result.Data
		if len(data) == 0 {
			data = emptyObject
		}
		w.Data = data
	} else {
		code := rpcerr.InternalError
		message := "error"
		if result.Err != nil {
			code = result.Err.Code
			message = result.Err.Message
		}
		codeVal := int(code)
		w.Error = &responseError{Code: &codeVal, Message: &message}
	}
	return json.Marshal(w)
}

// ParseRequestBody parses an incoming request/event body. A textual parse
// failure returns rpcerr.ParseError; a missing/non-string method returns
// rpcerr.InvalidRequest. A missing or null params defaults to an empty
// object.
func ParseRequestBody(body []byte) (RequestBody, error) {
	var raw struct {
		Method json.RawMessage `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RequestBody{}, rpcerr.New(rpcerr.ParseError, "parse_error")
	}

	var method string
	if len(raw.Method) == 0 || json.Unmarshal(raw.Method, &method) != nil {
		return RequestBody{}, rpcerr.New(rpcerr.InvalidRequest, "invalid_request")
	}

	params := raw.Params
	if len(params) == 0 || string(params) == "null" {
		params = emptyObject
	}
	return RequestBody{Method: method, Params: params}, nil
}

// ParseResponseBody parses an incoming response body into an rpcerr.Result.
// A textual parse failure or a missing boolean ok field returns an error
// result rather than a Go error, matching the wire-level contract that a
// malformed response is still a completion, never a hang.
func ParseResponseBody(body []byte) rpcerr.Result {
	var raw struct {
		OK    *bool           `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error *responseError  `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rpcerr.Err(rpcerr.ParseError, "response_parse_error")
	}
	if raw.OK == nil {
		return rpcerr.Err(rpcerr.InvalidRequest, "invalid_response")
	}
	if *raw.OK {
		data := raw.Data
		if len(data) == 0 || string(data) == "null" {
			data = emptyObject
		}
		return rpcerr.Ok(data)
	}

	code := rpcerr.InternalError
	message := "error"
	if raw.Error != nil {
		if raw.Error.Code != nil {
			code = rpcerr.Code(*raw.Error.Code)
		}
		if raw.Error.Message != nil {
			message = *raw.Error.Message
		}
	}
	return rpcerr.Err(code, message)
}
