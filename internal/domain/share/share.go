// Package share encodes buffer sets into compact, URL-safe share tokens and
// applies share links back onto a buffer set.
//
// A token is the compact JSON object {"h","c","j","l"} compressed with raw
// DEFLATE and encoded as unpadded base64url. The older link format carries
// each field in its own query parameter (html, css, js, lib).
package share

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/flate"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Query parameter names.
const (
	ParamCode = "code"
	ParamHTML = "html"
	ParamCSS  = "css"
	ParamJS   = "js"
	ParamLib  = "lib"
)

// DefaultMaxBytes caps the inflated payload size.
const DefaultMaxBytes = 4 << 20

// ErrMalformedToken is wrapped by every decode failure.
var ErrMalformedToken error = &types.ValidationError{Field: ParamCode, Reason: "malformed share token"}

// Format identifies which link format was applied.
type Format int

const (
	FormatNone Format = iota
	FormatCurrent
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatCurrent:
		return "current"
	case FormatLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// Codec encodes and decodes share tokens.
type Codec struct {
	MaxBytes int
	Metrics  *monitoring.Metrics
}

var defaultCodec = &Codec{MaxBytes: DefaultMaxBytes}

// NewCodec returns a codec with the given inflate cap (DefaultMaxBytes when <= 0).
func NewCodec(maxBytes int, metrics *monitoring.Metrics) *Codec {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Codec{MaxBytes: maxBytes, Metrics: metrics}
}

// Encode produces a token for s. Equal inputs give equal tokens.
func Encode(s types.SharedBuffers) (string, error) { return defaultCodec.Encode(s) }

// Decode parses a token produced by Encode.
func Decode(token string) (types.SharedBuffers, error) { return defaultCodec.Decode(token) }

// Apply applies share parameters onto dst. See Codec.Apply.
func Apply(values url.Values, dst *types.BufferSet) (Format, error) {
	return defaultCodec.Apply(values, dst)
}

// Encode produces a token for s.
func (c *Codec) Encode(s types.SharedBuffers) (string, error) {
	payload, err := sonic.ConfigStd.Marshal(s)
	if err != nil {
		c.Metrics.RecordShare("encode", "error")
		return "", fmt.Errorf("encoding share payload: %w", err)
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		c.Metrics.RecordShare("encode", "error")
		return "", fmt.Errorf("compressing share payload: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		c.Metrics.RecordShare("encode", "error")
		return "", fmt.Errorf("compressing share payload: %w", err)
	}
	if err := w.Close(); err != nil {
		c.Metrics.RecordShare("encode", "error")
		return "", fmt.Errorf("compressing share payload: %w", err)
	}

	c.Metrics.RecordShare("encode", "success")
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a token. It tolerates percent-encoding left over from a
// copied URL, padding, and the standard base64 alphabet.
func (c *Codec) Decode(token string) (types.SharedBuffers, error) {
	s, err := c.decode(token)
	if err != nil {
		c.Metrics.RecordShare("decode", "error")
		return types.SharedBuffers{}, err
	}
	c.Metrics.RecordShare("decode", "success")
	return s, nil
}

func (c *Codec) decode(token string) (types.SharedBuffers, error) {
	var out types.SharedBuffers

	token = strings.TrimSpace(token)
	if strings.Contains(token, "%") {
		if unescaped, err := url.QueryUnescape(token); err == nil {
			token = unescaped
		}
	}
	token = strings.TrimRight(token, "=")
	token = strings.NewReplacer("+", "-", "/", "_", " ", "-").Replace(token)
	if token == "" {
		return out, fmt.Errorf("%w: empty", ErrMalformedToken)
	}

	compressed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	payload, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(payload) > limit {
		return out, fmt.Errorf("%w: payload exceeds %d bytes", ErrMalformedToken, limit)
	}

	var raw map[string]any
	if err := sonic.ConfigStd.Unmarshal(payload, &raw); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	fields := []struct {
		key string
		dst *string
	}{{"h", &out.Markup}, {"c", &out.Style}, {"j", &out.Script}, {"l", &out.Library}}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return types.SharedBuffers{}, fmt.Errorf("%w: field %q is not a string", ErrMalformedToken, f.key)
		}
		*f.dst = str
	}
	return out, nil
}

// Apply applies share parameters onto dst. The current format always wins
// when the code parameter is present; otherwise each legacy parameter that
// is present replaces its field and absent ones are left unchanged. On a
// decode error dst is not modified. SuppressDialogs is never touched.
func (c *Codec) Apply(values url.Values, dst *types.BufferSet) (Format, error) {
	if _, ok := values[ParamCode]; ok {
		shared, err := c.Decode(values.Get(ParamCode))
		if err != nil {
			return FormatCurrent, err
		}
		*dst = dst.WithShared(shared)
		return FormatCurrent, nil
	}

	applied := false
	legacy := []struct {
		param string
		dst   *string
	}{{ParamHTML, &dst.Markup}, {ParamCSS, &dst.Style}, {ParamJS, &dst.Script}, {ParamLib, &dst.Library}}
	for _, f := range legacy {
		if _, ok := values[f.param]; ok {
			*f.dst = values.Get(f.param)
			applied = true
		}
	}
	if !applied {
		return FormatNone, nil
	}
	return FormatLegacy, nil
}

// Query returns the current-format query for s.
func (c *Codec) Query(s types.SharedBuffers) (url.Values, error) {
	token, err := c.Encode(s)
	if err != nil {
		return nil, err
	}
	return url.Values{ParamCode: {token}}, nil
}

// LegacyQuery returns the per-field query used by older links.
func LegacyQuery(s types.SharedBuffers) url.Values {
	return url.Values{
		ParamHTML: {s.Markup},
		ParamCSS:  {s.Style},
		ParamJS:   {s.Script},
		ParamLib:  {s.Library},
	}
}

// URL builds a share link on base, replacing any existing query.
func (c *Codec) URL(base string, s types.SharedBuffers) (string, error) {
	q, err := c.Query(s)
	if err != nil {
		return "", err
	}
	return withQuery(base, q)
}

// URL builds a share link with the default codec.
func URL(base string, s types.SharedBuffers) (string, error) { return defaultCodec.URL(base, s) }

// LegacyURL builds an old-style share link on base.
func LegacyURL(base string, s types.SharedBuffers) (string, error) {
	return withQuery(base, LegacyQuery(s))
}

func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" && u.Host == "" && u.Path == "" {
		return "", errors.New("invalid base url: empty")
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
