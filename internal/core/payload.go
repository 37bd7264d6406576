package core

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/klauspost/compress/zlib"
)

// Oversized payloads travel wrapped in a single compressed field so that the
// encoded body stays under the platform's task size limit.
const (
	compressedPayloadField = "__compressed_payload__"
	payloadVersionField    = "__payload_version__"
	payloadVersion         = "1"

	// DefaultCompressThreshold is the encoded-payload size above which
	// EncodePayload switches to the compressed wrapping.
	DefaultCompressThreshold = 100 << 10
)

var (
	errPayloadVersion = errors.New("unsupported payload version")
	errPayloadCorrupt = errors.New("malformed compressed payload")
)

// EncodePayload encodes params as a task body. Payloads whose plain encoding
// exceeds threshold bytes are wrapped in the oversized-payload form. A
// threshold of 0 means DefaultCompressThreshold; a negative threshold
// disables wrapping entirely.
func EncodePayload(params url.Values, threshold int) ([]byte, error) {
	plain := params.Encode()

	if threshold == 0 {
		threshold = DefaultCompressThreshold
	}

	if threshold < 0 || len(plain) <= threshold {
		return []byte(plain), nil
	}

	wrapped, err := CompressPayload(params)
	if err != nil {
		return nil, err
	}

	return []byte(wrapped.Encode()), nil
}

// CompressPayload wraps params in the oversized-payload form regardless of
// their size: the urlencoded parameters, zlib-compressed and base64-encoded,
// carried in a single versioned field.
func CompressPayload(params url.Values) (url.Values, error) {
	var buf bytes.Buffer

	writer := zlib.NewWriter(&buf)

	_, err := io.WriteString(writer, params.Encode())
	if err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}

	return url.Values{
		compressedPayloadField: {base64.StdEncoding.EncodeToString(buf.Bytes())},
		payloadVersionField:    {payloadVersion},
	}, nil
}

// DecodePayload returns the parameters carried by a task's body,
// transparently unwrapping the oversized-payload form. An empty body decodes
// to empty values.
func DecodePayload(task *Task) (url.Values, error) {
	if len(task.Body) == 0 {
		return url.Values{}, nil
	}

	values, err := url.ParseQuery(string(task.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing task %q body: %w", task.Name, err)
	}

	if !values.Has(compressedPayloadField) {
		return values, nil
	}

	if version := values.Get(payloadVersionField); version != payloadVersion {
		return nil, fmt.Errorf("%w: %q", errPayloadVersion, version)
	}

	compressed, err := base64.StdEncoding.DecodeString(values.Get(compressedPayloadField))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPayloadCorrupt, err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPayloadCorrupt, err)
	}
	defer func() { _ = reader.Close() }()

	inflated, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPayloadCorrupt, err)
	}

	inner, err := url.ParseQuery(string(inflated))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPayloadCorrupt, err)
	}

	return inner, nil
}
