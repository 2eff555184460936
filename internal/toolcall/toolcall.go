// Package toolcall defines the message boundary between the upgrade
// workflow and the data provider. The same contract is served in-process
// and over HTTP.
package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

// Tool names in the data provider catalog.
const (
	GetCustomer            = "get_customer"
	CreateCustomer         = "create_customer"
	GetTicketsForCustomer  = "get_tickets_for_customer"
	GetTicket              = "get_ticket"
	FindOpenOrder          = "find_open_order"
	CreateUpgradeOrder     = "create_upgrade_order"
	GetUpgradeOrder        = "get_upgrade_order"
	TransitionUpgradeOrder = "transition_upgrade_order"
	UpdateCustomer         = "update_customer"
	ValidateDataIntegrity  = "validate_data_integrity"
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindIneligible          ErrorKind = "ineligible"
	KindConflict            ErrorKind = "conflict"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInternal            ErrorKind = "internal"
	KindUnknownTool         ErrorKind = "unknown_tool"
)

// Request is a single tool invocation.
type Request struct {
	Tool      string         `json:"tool" validate:"required"`
	Arguments map[string]any `json:"arguments"`
	RequestID string         `json:"request_id,omitempty"`
}

// Error is the structured failure payload of a Response.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// DomainError maps the wire error onto the application error taxonomy.
func (e *Error) DomainError() *errorutil.DomainError {
	switch e.Kind {
	case KindValidation, KindUnknownTool:
		return errorutil.NewValidationError(e.Message, nil)
	case KindNotFound:
		return errorutil.NewDomainError(errorutil.CodeNotFound, e.Message, http.StatusNotFound, nil)
	case KindIneligible:
		return errorutil.NewIneligible("", e.Message)
	case KindConflict:
		return errorutil.NewConflict(e.Message, nil)
	case KindUpstreamUnavailable:
		return errorutil.NewUpstreamUnavailable(e.Message, e)
	default:
		return errorutil.NewInternalInconsistency(e.Message, e)
	}
}

// Response carries either Data or Error, never both.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// OK builds a successful response around v.
func OK(v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return Fail(KindInternal, "encode result: "+err.Error())
	}
	return Response{Success: true, Data: raw}
}

// Fail builds an error response.
func Fail(kind ErrorKind, message string) Response {
	return Response{Error: &Error{Kind: kind, Message: message}}
}

// FailFrom converts an application error into an error response.
func FailFrom(err error) Response {
	de := errorutil.ToDomainError(err)
	return Fail(KindFromCode(de.Code), de.Message)
}

// KindFromCode maps an application error code onto a wire error kind.
func KindFromCode(code string) ErrorKind {
	switch code {
	case errorutil.CodeValidation:
		return KindValidation
	case errorutil.CodeNotFound:
		return KindNotFound
	case errorutil.CodeIneligible:
		return KindIneligible
	case errorutil.CodeConflict:
		return KindConflict
	case errorutil.CodeUpstreamUnavailable:
		return KindUpstreamUnavailable
	default:
		return KindInternal
	}
}

// Decode unmarshals a successful response into out, or returns the call's error.
func (r Response) Decode(out any) error {
	if !r.Success {
		if r.Error == nil {
			return &Error{Kind: KindInternal, Message: "tool call failed without an error payload"}
		}
		return r.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return &Error{Kind: KindInternal, Message: "decode result: " + err.Error()}
	}
	return nil
}

// Invoker delivers a Request to a data provider and waits for its Response.
// Transport failures are reported as KindUpstreamUnavailable responses.
type Invoker interface {
	Invoke(ctx context.Context, req Request) Response
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) Response

func (f InvokerFunc) Invoke(ctx context.Context, req Request) Response {
	return f(ctx, req)
}
