// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/tether/lib/envelope"
)

// Call performs a typed request: it stamps request with method, sends
// it through s.Request and decodes the verified body into response. A
// response header carrying an error status is returned as an
// *envelope.StatusError.
//
//	var echo envelope.EchoResponse
//	err := rpc.Call(ctx, session, "Ping", &envelope.EchoRequest{Payload: data}, &echo)
func Call(ctx context.Context, s *Session, method string, request envelope.Request, response envelope.Response) error {
	request.SetHeader(&envelope.RequestHeader{Method: method})
	body, err := s.Request(ctx, method, envelope.Marshal(request))
	if err != nil {
		return err
	}
	if err := envelope.Unmarshal(body, response); err != nil {
		return fmt.Errorf("%s response: %w", method, err)
	}
	return response.GetHeader().Err()
}
