package blocker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// makeHTTPS fetches the https variant of req with its method, headers and
// body. Any completed exchange is terminal, whatever its status.
func (h *Handler) makeHTTPS(ctx context.Context, req Request) (*Response, error) {
	if h.fetcher == nil {
		return nil, errNoFetcher
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if len(req.Body) == 0 && declaresBody(req.Headers) {
		return nil, errBodyUnavailable
	}
	resp, err := h.fetcher.Do(ctx, &FetchRequest{
		Method:  method,
		URL:     httpsVariant(req.URL),
		Headers: req.Headers,
		Body:    req.Body,
	})
	if err != nil {
		return nil, err
	}
	return upgradedResponse(resp), nil
}

// declaresBody reports whether headers announce a payload
func declaresBody(headers map[string]string) bool {
	for k, v := range headers {
		switch {
		case strings.EqualFold(k, "Content-Length"):
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
				return true
			}
		case strings.EqualFold(k, "Transfer-Encoding"):
			return true
		}
	}
	return false
}

func upgradedResponse(resp *FetchResponse) *Response {
	contentType, params, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = detectContentType(resp.Body)
	}

	encoding := charsetParam(params)
	if encoding == "" {
		encoding = detectCharset(contentType, resp.Body)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ",")
	}

	return &Response{
		ContentType:  contentType,
		Encoding:     encoding,
		StatusCode:   resp.StatusCode,
		ReasonPhrase: reasonPhrase(resp),
		Headers:      headers,
		Body:         resp.Body,
		Action:       models.ActionMakeHTTPS,
	}
}

func detectContentType(body []byte) string {
	if len(body) == 0 {
		return "text/plain"
	}
	mt, _, _ := strings.Cut(mimetype.Detect(body).String(), ";")
	return mt
}

func charsetParam(params string) string {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "charset") {
			return strings.ToLower(strings.Trim(strings.TrimSpace(v), `"`))
		}
	}
	return ""
}

// detectCharset guesses the charset of textual bodies, utf-8 otherwise
func detectCharset(contentType string, body []byte) string {
	textual := strings.HasPrefix(contentType, "text/") ||
		strings.HasSuffix(contentType, "javascript") ||
		strings.HasSuffix(contentType, "json") ||
		strings.HasSuffix(contentType, "xml")
	if !textual || len(body) == 0 {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil || result.Charset == "" {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func reasonPhrase(resp *FetchResponse) string {
	if _, phrase, ok := strings.Cut(resp.Status, " "); ok && phrase != "" {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	return errors.As(err, &recordErr) ||
		errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		strings.Contains(err.Error(), "tls: ")
}
