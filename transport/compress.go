// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/tether/lib/netutil"
)

// Content encodings understood on reply bodies, in preference order.
const (
	EncodingZstd = "zstd"
	EncodingLZ4  = "lz4"
)

// acceptEncoding is the Accept-Encoding value sent when compression is
// enabled.
const acceptEncoding = EncodingZstd + ", " + EncodingLZ4

// minCompressSize is the smallest body worth compressing. Below it the
// frame overhead outweighs any saving.
const minCompressSize = 512

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent
// use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic("transport: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(netutil.MaxBodySize)))
	if err != nil {
		panic("transport: zstd decoder initialization failed: " + err.Error())
	}
}

// NegotiateEncoding picks the reply encoding for an Accept-Encoding
// header value. It returns "" when the client accepts neither zstd nor
// lz4. Entries with q=0 are refused; other quality values are ignored
// in favour of the fixed preference order.
func NegotiateEncoding(accept string) string {
	var zstdOK, lz4OK bool
	for entry := range strings.SplitSeq(accept, ",") {
		name, params, _ := strings.Cut(entry, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if refused(params) {
			continue
		}
		switch name {
		case EncodingZstd:
			zstdOK = true
		case EncodingLZ4:
			lz4OK = true
		}
	}
	switch {
	case zstdOK:
		return EncodingZstd
	case lz4OK:
		return EncodingLZ4
	default:
		return ""
	}
}

func refused(params string) bool {
	for param := range strings.SplitSeq(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
			continue
		}
		value = strings.TrimSpace(value)
		return strings.Trim(value, "0.") == ""
	}
	return false
}

// Compress encodes data with the named encoding. The empty encoding
// returns data unchanged.
func Compress(encoding string, data []byte) ([]byte, error) {
	switch encoding {
	case "":
		return data, nil
	case EncodingZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case EncodingLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buffer.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// Decompress reverses Compress, failing if the decoded body exceeds
// limit bytes. A limit <= 0 means netutil.MaxBodySize.
func Decompress(encoding string, data []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = netutil.MaxBodySize
	}
	switch encoding {
	case "", "identity":
		return data, nil
	case EncodingZstd:
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(decoded)) > limit {
			return nil, fmt.Errorf("zstd decompress: %w: more than %d bytes", netutil.ErrBodyTooLarge, limit)
		}
		return decoded, nil
	case EncodingLZ4:
		decoded, err := netutil.ReadBody(lz4.NewReader(bytes.NewReader(data)), limit)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
