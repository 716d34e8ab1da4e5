package rpc

import "errors"

// Protocol errors (spec.md §7): the peer sent a malformed frame.
// These are surfaced either as an Abort + connection termination, or
// (for per-question failures) as an exception Return carrying the
// error's name.
var (
	ErrInvalidMessageTag              = errors.New("rpc: invalid message tag")
	ErrUnexpectedMessage              = errors.New("rpc: unexpected message")
	ErrMissingCallTarget              = errors.New("rpc: missing call target")
	ErrMissingPromisedAnswer          = errors.New("rpc: missing promised answer")
	ErrMissingCapDescriptorId         = errors.New("rpc: missing cap descriptor id")
	ErrMissingThirdPartyCapDescriptor = errors.New("rpc: missing third party cap descriptor")
	ErrMissingEmbargoId               = errors.New("rpc: missing embargo id")
	ErrInvalidThirdPartyAnswerId      = errors.New("rpc: invalid third party answer id")
	ErrDuplicateThirdPartyAnswerId    = errors.New("rpc: duplicate third party answer id")
	ErrConflictingThirdPartyAnswer    = errors.New("rpc: conflicting third party answer")
	ErrDuplicateThirdPartyAwait       = errors.New("rpc: duplicate third party await")
	ErrUnexpectedForwardedTailReturn  = errors.New("rpc: unexpected forwarded tail return")
)

// Capability-table errors (spec.md §7): per-operation; surfaced as an
// exception Return for the offending question.
var (
	ErrCapTableFull             = errors.New("rpc: capability table full")
	ErrCapabilityIdTooLarge     = errors.New("rpc: capability id too large")
	ErrUnknownReceiverAnswerCap = errors.New("rpc: unknown receiver answer capability")
	ErrUnknownExport            = errors.New("rpc: unknown export")
	ErrRefCountOverflow         = errors.New("rpc: reference count overflow")
)

// Framing errors (spec.md §7): fatal to the connection.
var (
	ErrInvalidFrame  = errors.New("rpc: invalid frame")
	ErrFrameTooLarge = errors.New("rpc: frame too large")
)

// Connection-level sentinels, in the teacher's style.
var (
	ErrConnClosed              = errors.New("rpc: connection closed")
	errNoMainInterface         = errors.New("rpc: no main interface")
	errQuestionReused          = errors.New("rpc: question ID reused")
	errBadTarget               = errors.New("rpc: invalid target")
	errUnimplemented           = errors.New("rpc: unimplemented")
	errShutdown                = errors.New("rpc: connection shut down locally")
	errDisembargoNonImport     = errors.New("rpc: disembargo sender loopback targets a non-promised-answer")
	errDisembargoMissingAnswer = errors.New("rpc: disembargo targets unknown answer")
	errQuestionCanceled        = errors.New("rpc: question canceled")
)

// Third-party handoff errors (spec.md §4.7's Provide/Accept/Join
// rows). This engine models third-party introduction as a local
// loopback rather than a real multi-vat network (see DESIGN.md), so
// these mark the cases that loopback can't serve.
var (
	ErrUnknownProvision   = errors.New("rpc: unknown provision key")
	ErrDuplicateProvision = errors.New("rpc: duplicate provide")
	ErrUnsupportedJoin    = errors.New("rpc: operation requires a multi-vat network")
)

// Call-routing exception reasons (spec.md §4.8's five-plan
// classification). Unlike the sentinels above, these carry no "rpc: "
// prefix: their Error() text is sent verbatim as an exception
// Return's reason, and is normative wire text for peers that compare
// against the standardized strings.
var (
	ErrPromiseBroken             = errors.New("promise broken")
	ErrMissingExportHandler      = errors.New("missing promised capability handler")
	ErrUnknownPromisedCapability = errors.New("unknown promised capability")
)

// ErrForwardedReturnMissingPayload is the forwarded-return
// translator's reason (spec.md §4.9, Testable Property S7) when a
// translate_to_caller forward receives a results tag with no content.
var ErrForwardedReturnMissingPayload = errors.New("forwarded return missing payload")
