// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// Errors for malformed wire data. Both ends return them.
var (
	ErrMalformedBody      = rpcerr.New(rpcerr.KindProtocol, "malformed body")
	ErrMalformedSequence  = rpcerr.New(rpcerr.KindProtocol, "malformed sequence header")
	ErrMalformedSignature = rpcerr.New(rpcerr.KindProtocol, "malformed signature header")
)

// newRequest builds the HTTP request for call. The caller has already
// validated call.
func newRequest(ctx context.Context, url string, call *Call, compression bool) (*http.Request, error) {
	var body []byte
	if call.Payload != nil {
		body = []byte(hex.EncodeToString(call.Payload))
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, rpcerr.Protocol("building request", err)
	}
	request.Header.Set("Content-Type", "text/plain")
	request.Header.Set(HeaderMethod, call.Method)
	request.Header.Set(HeaderSequence, strconv.FormatUint(call.Sequence, 10))
	if call.ClientToken != "" {
		request.Header.Set(HeaderClientToken, call.ClientToken)
	}
	if call.Signature != nil {
		request.Header.Set(HeaderSignature, hex.EncodeToString(call.Signature))
	}
	if compression {
		request.Header.Set("Accept-Encoding", acceptEncoding)
	}
	return request, nil
}

// readReply turns an HTTP response into a Reply. It consumes and
// closes the response body.
func readReply(response *http.Response, method string) (*Reply, error) {
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, rpcerr.Transport(method, &HTTPError{
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(netutil.ErrorBody(response.Body)),
		})
	}

	raw, err := netutil.ReadBody(response.Body, 0)
	if err != nil {
		return nil, rpcerr.Transport(method, err)
	}
	raw, err = Decompress(response.Header.Get("Content-Encoding"), raw, 0)
	if err != nil {
		return nil, rpcerr.Transport(method, err)
	}

	reply := &Reply{StatusCode: response.StatusCode, Header: response.Header}
	if method == MethodReady {
		reply.Body = raw
		return reply, nil
	}
	body, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s reply: %w", ErrMalformedBody, method, err)
	}
	reply.Body = body
	return reply, nil
}

// Sequence returns the reply's Message-Sequence header. present is
// false when the header is absent.
func (r *Reply) Sequence() (sequence uint64, present bool, err error) {
	value := r.Header.Get(HeaderSequence)
	if value == "" {
		return 0, false, nil
	}
	sequence, err = strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %q", ErrMalformedSequence, value)
	}
	return sequence, true, nil
}

// Signature returns the decoded Message-Signature header, or nil when
// it is absent.
func (r *Reply) Signature() ([]byte, error) {
	value := r.Header.Get(HeaderSignature)
	if value == "" {
		return nil, nil
	}
	signature, err := decodeBase64([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return signature, nil
}

func decodeBase64(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return nil, err
	}
	return decoded[:n], nil
}

// ParseCall reads a Call from an incoming request, reading at most
// limit body bytes (limit <= 0 means netutil.MaxBodySize). A missing
// Message-Sequence header reads as 0. A signed call with an empty body
// carries an empty, non-nil payload.
func ParseCall(request *http.Request, limit int64) (*Call, error) {
	call := &Call{
		Method:      request.Header.Get(HeaderMethod),
		ClientToken: request.Header.Get(HeaderClientToken),
	}
	if value := request.Header.Get(HeaderSequence); value != "" {
		sequence, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSequence, value)
		}
		call.Sequence = sequence
	}
	if value := request.Header.Get(HeaderSignature); value != "" {
		signature, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
		}
		call.Signature = signature
	}

	raw, err := netutil.ReadBody(request.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 {
		payload := make([]byte, hex.DecodedLen(len(raw)))
		if _, err := hex.Decode(payload, raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
		}
		call.Payload = payload
	} else if call.Signature != nil {
		call.Payload = []byte{}
	}

	if err := call.Validate(); err != nil {
		return nil, err
	}
	return call, nil
}

// ReplyOptions describes an outgoing reply for WriteReply.
type ReplyOptions struct {
	Method    string
	Sequence  uint64
	Body      []byte
	Signature []byte

	// Compression allows compressing the body when the request's
	// Accept-Encoding permits it.
	Compression bool
}

// WriteReply writes a 200 reply carrying options.Body in the wire
// encoding.
func WriteReply(w http.ResponseWriter, request *http.Request, options ReplyOptions) error {
	header := w.Header()
	header.Set("Content-Type", "text/plain")
	header.Set(HeaderMethod, options.Method)
	header.Set(HeaderSequence, strconv.FormatUint(options.Sequence, 10))
	if options.Signature != nil {
		header.Set(HeaderSignature, base64.StdEncoding.EncodeToString(options.Signature))
	}
	body := []byte(base64.StdEncoding.EncodeToString(options.Body))
	return writeBody(w, request, body, options.Compression)
}

// WriteProbeReply answers the readiness probe.
func WriteProbeReply(w http.ResponseWriter, request *http.Request) error {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(HeaderMethod, MethodReady)
	return writeBody(w, request, []byte(ProbeReply), false)
}

func writeBody(w http.ResponseWriter, request *http.Request, body []byte, compression bool) error {
	if compression && len(body) >= minCompressSize {
		if encoding := NegotiateEncoding(request.Header.Get("Accept-Encoding")); encoding != "" {
			compressed, err := Compress(encoding, body)
			if err != nil {
				return err
			}
			w.Header().Set("Content-Encoding", encoding)
			body = compressed
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(body)
	return err
}
