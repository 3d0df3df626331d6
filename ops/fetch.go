package ops

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/permission"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
	"github.com/arfaz/opbus/httpclient"
	"github.com/arfaz/opbus/proxy"
	"github.com/arfaz/opbus/schema"
	"github.com/arfaz/opbus/worker"
)

// maxSchemaCheckBody bounds how much of a JSON body fetch will buffer in
// memory to run through schema drift detection. Larger bodies skip the
// check and are streamed to the resource table untouched.
const maxSchemaCheckBody = 1 << 20 // 1 MiB

// FetchRequest is the fetch(method, url, headers, body) op payload.
// Headers is an ordered list of [name, value] pairs so each header name
// keeps the guest's exact casing; the order across different names is not
// kept once they are written into the request's http.Header map.
type FetchRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers [][2]string `json:"headers"`
	Body    []byte      `json:"body"`
}

// FetchReply is the fetch() op's success payload. The body is not inlined;
// it is stashed in the resource table as a httpBody stream and read back
// with subsequent read ops, matching how a child process's stdout is
// handled.
type FetchReply struct {
	BodyRID        int32       `json:"bodyRid"`
	Status         int         `json:"status"`
	StatusText     string      `json:"statusText"`
	Headers        [][2]string `json:"headers"`
	SchemaWarnings []string    `json:"schemaWarnings,omitempty"`
}

// Fetch exposes the fetch op handler. When Profile is non-nil, requests are
// carried over a fingerprinted uTLS/HTTP2 transport instead of the stdlib
// default, so the session presents a coherent TLS/header signature. When
// Schemas is non-nil, small JSON response bodies are checked against the
// per-host baseline schema and any drift is reported as SchemaWarnings
// rather than failing the fetch.
type Fetch struct {
	Table   *resource.Table
	Policy  *permission.Policy
	Pool    *worker.WorkerPool
	Proxies *proxy.ProxyManager
	Profile *httpclient.Profile
	Schemas *schema.Registry
	Timeout time.Duration
}

// Do implements the fetch() op. The round trip runs on the worker pool and
// the reply is delivered asynchronously; the response body is left
// unconsumed on the wire until the guest issues read ops against BodyRID.
func (f *Fetch) Do(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	var fr FetchRequest
	if berr := dispatch.DecodeJsonPayload(req.Payload, &fr); berr != nil {
		return dispatch.Result{}, berr
	}
	if fr.Method == "" || fr.URL == "" {
		return dispatch.Result{}, errs.Newf(errs.Parse, "fetch: method and url are required")
	}
	if berr := f.Policy.CheckNetURL(fr.URL); berr != nil {
		return dispatch.Result{}, berr
	}

	client, berr := f.buildClient()
	if berr != nil {
		return dispatch.Result{}, berr
	}

	httpReq, err := http.NewRequest(fr.Method, fr.URL, bytes.NewReader(fr.Body))
	if err != nil {
		return dispatch.Result{}, errs.New(errs.Parse, err)
	}
	headers := httpclient.FromPairs(fr.Headers)
	if f.Profile != nil && headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", f.Profile.UserAgent)
	}
	headers.ApplyToRequest(httpReq)

	ch := make(chan dispatch.AsyncReply, 1)
	f.Pool.Submit(func() {
		resp, err := client.Do(httpReq)
		if err != nil {
			ch <- dispatch.AsyncReply{Err: errs.New(errs.IO, err)}
			return
		}

		body, decodeErr := decompressBody(resp.Body, resp.Header.Get("Content-Encoding"))
		if decodeErr != nil {
			resp.Body.Close()
			ch <- dispatch.AsyncReply{Err: errs.New(errs.IO, decodeErr)}
			return
		}

		headers := make([][2]string, 0, len(resp.Header))
		for k, vals := range resp.Header {
			if strings.EqualFold(k, "Content-Encoding") || strings.EqualFold(k, "Content-Length") {
				continue
			}
			for _, v := range vals {
				headers = append(headers, [2]string{k, v})
			}
		}

		var warnings []string
		if f.Schemas != nil && isJSONContentType(resp.Header.Get("Content-Type")) {
			body, warnings = f.checkSchema(fr.URL, body)
		}
		bodyRID := f.Table.Add(stream.TagHTTPBody, stream.NewReadOnly(body))

		reply := FetchReply{
			BodyRID:        bodyRID,
			Status:         resp.StatusCode,
			StatusText:     http.StatusText(resp.StatusCode),
			Headers:        headers,
			SchemaWarnings: warnings,
		}
		out, err := dispatch.EncodeJsonOK(reply)
		if err != nil {
			resp.Body.Close()
			ch <- dispatch.AsyncReply{Err: errs.New(errs.IO, err)}
			return
		}
		ch <- dispatch.AsyncReply{Reply: out}
	})
	return dispatch.AsyncResult(ch), nil
}

// buildClient constructs the *http.Client for one fetch call. Without a
// Profile it uses the stdlib transport through the next proxy from Proxies
// (if any); with a Profile its transport is replaced by the profile's
// fingerprinted transport, which does not go through a proxy.
func (f *Fetch) buildClient() (*http.Client, *errs.BusError) {
	var proxyAddr string
	if f.Proxies != nil {
		proxyAddr = f.Proxies.GetNextProxy()
	}
	timeout := f.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if f.Profile == nil {
		client, err := httpclient.New(proxyAddr, timeout)
		if err != nil {
			return nil, errs.New(errs.IO, err)
		}
		return client, nil
	}

	client, err := httpclient.New(proxyAddr, timeout)
	if err != nil {
		return nil, errs.New(errs.IO, err)
	}
	client.Transport = f.Profile.NewTransport()
	return client, nil
}

// checkSchema buffers up to maxSchemaCheckBody bytes of a JSON response body,
// runs it through the per-host schema validator, and returns a replacement
// io.ReadCloser that replays the buffered bytes followed by anything left
// unread on the original body (for responses larger than the cap).
func (f *Fetch) checkSchema(rawURL string, body io.ReadCloser) (io.ReadCloser, []string) {
	buf := make([]byte, maxSchemaCheckBody)
	n, _ := io.ReadFull(body, buf)
	buf = buf[:n]

	replacement := struct {
		io.Reader
		io.Closer
	}{Reader: io.MultiReader(bytes.NewReader(buf), body), Closer: body}

	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	mismatches, err := f.Schemas.For(host).Validate(buf)
	if err != nil {
		return replacement, nil
	}
	if len(mismatches) == 0 {
		return replacement, nil
	}
	warnings := make([]string, len(mismatches))
	for i, m := range mismatches {
		warnings[i] = m.String()
	}
	return replacement, warnings
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

// decompressBody wraps resp.Body in a decoder for the response's
// Content-Encoding, if any, so the guest always sees plain bytes through
// read ops regardless of what the remote sent over the wire. The returned
// ReadCloser's Close also closes the original body.
func decompressBody(body io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("fetch: gzip decode: %w", err)
		}
		return readCloser{Reader: r, closer: body}, nil
	case "deflate":
		r, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("fetch: deflate decode: %w", err)
		}
		return readCloser{Reader: r, closer: body}, nil
	case "br":
		return readCloser{Reader: brotli.NewReader(body), closer: body}, nil
	default:
		return body, nil
	}
}

// readCloser pairs a decoder's Reader with the underlying response body's
// Close, since most compression readers in this package set don't own the
// stream they were constructed from.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r readCloser) Close() error { return r.closer.Close() }
