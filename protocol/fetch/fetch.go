// Package fetch implements the CDP Fetch domain: request interception with
// pattern matching and the fulfill/continue/fail response pipeline,
// grounded in original_source's domains/Fetch.py.
package fetch

import (
	"context"
	"encoding/json"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandEnable            protocol.MethodType = "Fetch.enable"
	CommandDisable           protocol.MethodType = "Fetch.disable"
	CommandContinueRequest   protocol.MethodType = "Fetch.continueRequest"
	CommandFailRequest       protocol.MethodType = "Fetch.failRequest"
	CommandFulfillRequest    protocol.MethodType = "Fetch.fulfillRequest"
	CommandGetResponseBody   protocol.MethodType = "Fetch.getResponseBody"
	CommandContinueWithAuth  protocol.MethodType = "Fetch.continueWithAuth"

	EventRequestPaused    protocol.MethodType = "Fetch.requestPaused"
	EventAuthRequired     protocol.MethodType = "Fetch.authRequired"
)

// RequestStage is when interception fires relative to the network stack.
type RequestStage string

// Interception stages.
const (
	StageRequest  RequestStage = "Request"
	StageResponse RequestStage = "Response"
)

// RequestPattern filters which requests Fetch.requestPaused fires for.
type RequestPattern struct {
	URLPattern   string       `json:"urlPattern,omitempty"`
	ResourceType string       `json:"resourceType,omitempty"`
	RequestStage RequestStage `json:"requestStage,omitempty"`
}

// HeaderEntry is one HTTP header, the shape Fetch uses instead of a map so
// that duplicate header names and wire order are both preserved.
type HeaderEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestData describes the intercepted request.
type RequestData struct {
	URL         string        `json:"url"`
	Method      string        `json:"method"`
	Headers     json.RawMessage `json:"headers"`
	PostData    string        `json:"postData,omitempty"`
	HasPostData bool          `json:"hasPostData,omitempty"`
}

// EventRequestPausedPayload is the Fetch.requestPaused params.
type EventRequestPausedPayload struct {
	RequestID          string      `json:"requestId"`
	Request            RequestData `json:"request"`
	FrameID             protocol.FrameID `json:"frameId"`
	ResourceType        string      `json:"resourceType"`
	ResponseStatusCode  int64       `json:"responseStatusCode,omitempty"`
	ResponseHeaders     []HeaderEntry `json:"responseHeaders,omitempty"`
	NetworkID           string      `json:"networkId,omitempty"`
}

// IsResponseStage reports whether the pause happened after the response
// headers arrived (Fetch.requestPaused with responseStatusCode set).
func (e *EventRequestPausedPayload) IsResponseStage() bool {
	return e.ResponseStatusCode != 0
}

// EventAuthRequiredPayload is the Fetch.authRequired params.
type EventAuthRequiredPayload struct {
	RequestID string      `json:"requestId"`
	Request   RequestData `json:"request"`
}

// EnableParams are the parameters for Fetch.enable.
type EnableParams struct {
	Patterns           []*RequestPattern `json:"patterns,omitempty"`
	HandleAuthRequests bool              `json:"handleAuthRequests,omitempty"`
}

// Enable turns on interception for the given patterns. An empty pattern
// list intercepts every request, matching the Fetch domain's own default.
func Enable(patterns ...*RequestPattern) protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandEnable, &EnableParams{Patterns: patterns}, nil)
	})
}

// Disable turns off interception.
func Disable() protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandDisable, nil, nil)
	})
}

// ContinueRequestParams are the parameters for Fetch.continueRequest.
type ContinueRequestParams struct {
	RequestID       string        `json:"requestId"`
	URL             string        `json:"url,omitempty"`
	Method          string        `json:"method,omitempty"`
	PostData        string        `json:"postData,omitempty"`
	Headers         []HeaderEntry `json:"headers,omitempty"`
}

// ContinueRequest resumes requestID unmodified, or with the given overrides.
func ContinueRequest(requestID string) *ContinueRequestParams {
	return &ContinueRequestParams{RequestID: requestID}
}

// WithURL overrides the request URL before resuming.
func (p *ContinueRequestParams) WithURL(url string) *ContinueRequestParams {
	p.URL = url
	return p
}

// WithHeaders overrides the request headers before resuming.
func (p *ContinueRequestParams) WithHeaders(h []HeaderEntry) *ContinueRequestParams {
	p.Headers = h
	return p
}

// Do executes Fetch.continueRequest against the Executor bound to ctx.
func (p *ContinueRequestParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandContinueRequest, p, nil)
}

// ErrorReason is the value of Fetch.failRequest's errorReason field.
type ErrorReason string

// Common error reasons.
const (
	ErrorReasonFailed         ErrorReason = "Failed"
	ErrorReasonAborted        ErrorReason = "Aborted"
	ErrorReasonBlockedByClient ErrorReason = "BlockedByClient"
)

// FailRequestParams are the parameters for Fetch.failRequest.
type FailRequestParams struct {
	RequestID   string      `json:"requestId"`
	ErrorReason ErrorReason `json:"errorReason"`
}

// FailRequest aborts requestID with reason.
func FailRequest(requestID string, reason ErrorReason) protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandFailRequest, &FailRequestParams{RequestID: requestID, ErrorReason: reason}, nil)
	})
}

// FulfillRequestParams are the parameters for Fetch.fulfillRequest.
type FulfillRequestParams struct {
	RequestID       string        `json:"requestId"`
	ResponseCode    int64         `json:"responseCode"`
	ResponseHeaders []HeaderEntry `json:"responseHeaders,omitempty"`
	Body            []byte        `json:"body,omitempty"`
	ResponsePhrase  string        `json:"responsePhrase,omitempty"`
}

// FulfillRequest builds a canned response for requestID.
func FulfillRequest(requestID string, statusCode int64) *FulfillRequestParams {
	return &FulfillRequestParams{RequestID: requestID, ResponseCode: statusCode}
}

// WithBody sets the fulfilled response body (base64-encoded over the wire).
func (p *FulfillRequestParams) WithBody(body []byte) *FulfillRequestParams {
	p.Body = body
	return p
}

// WithHeaders sets the fulfilled response headers.
func (p *FulfillRequestParams) WithHeaders(h []HeaderEntry) *FulfillRequestParams {
	p.ResponseHeaders = h
	return p
}

// Do executes Fetch.fulfillRequest against the Executor bound to ctx.
func (p *FulfillRequestParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandFulfillRequest, p, nil)
}

// AuthChallengeResponseType is the "response" field of an auth challenge
// disposition.
type AuthChallengeResponseType string

// Auth challenge dispositions.
const (
	AuthDefault            AuthChallengeResponseType = "Default"
	AuthCancelAuth         AuthChallengeResponseType = "CancelAuth"
	AuthProvideCredentials AuthChallengeResponseType = "ProvideCredentials"
)

// AuthChallengeResponse answers a Fetch.authRequired pause.
type AuthChallengeResponse struct {
	Response AuthChallengeResponseType `json:"response"`
	Username string                    `json:"username,omitempty"`
	Password string                    `json:"password,omitempty"`
}

// ContinueWithAuthParams are the parameters for Fetch.continueWithAuth.
type ContinueWithAuthParams struct {
	RequestID string                 `json:"requestId"`
	Response  AuthChallengeResponse `json:"authChallengeResponse"`
}

// ContinueWithAuth answers the auth challenge on requestID.
func ContinueWithAuth(requestID string, resp AuthChallengeResponse) protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandContinueWithAuth, &ContinueWithAuthParams{RequestID: requestID, Response: resp}, nil)
	})
}

// GetResponseBodyParams are the parameters for Fetch.getResponseBody.
type GetResponseBodyParams struct {
	RequestID string `json:"requestId"`
}

// GetResponseBodyReturns is the Fetch.getResponseBody result. Body is the
// raw wire string: when Base64Encoded is false (the common case for
// text/html and text/plain bodies) it is the body text itself, not bytes
// to be base64-decoded.
type GetResponseBodyReturns struct {
	Body          string `json:"body"`
	Base64Encoded bool   `json:"base64Encoded"`
}

// GetResponseBody fetches the paused response's body, for Response-stage
// interception.
func GetResponseBody(requestID string) *GetResponseBodyParams {
	return &GetResponseBodyParams{RequestID: requestID}
}

// Do executes Fetch.getResponseBody against the Executor bound to ctx,
// returning the body alongside whether it is base64-encoded so the caller
// can decode it correctly.
func (p *GetResponseBodyParams) Do(ctx context.Context) (string, bool, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return "", false, protocol.ErrNoExecutor
	}
	var res GetResponseBodyReturns
	if err := exec.Execute(ctx, CommandGetResponseBody, p, &res); err != nil {
		return "", false, err
	}
	return res.Body, res.Base64Encoded, nil
}
