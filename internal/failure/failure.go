// Package failure defines the error taxonomy shared by every layer of the
// record program.
//
// Each Kind carries a stable numeric code. The codes are part of the
// external contract: hosts surface them to callers as custom program
// errors, so existing values must never be renumbered.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies a specific failure and doubles as its custom error code.
type Kind uint32

const (
	// DataTooLarge: name and message do not fit in a record slot.
	DataTooLarge Kind = 0
	// AddressMismatch: the supplied slot is not the address derived from the signer.
	AddressMismatch Kind = 1
	// EmptyInstruction: instruction data has no opcode byte.
	EmptyInstruction Kind = 2
	// UnknownOpcode: opcode is neither create nor update.
	UnknownOpcode Kind = 3
	// MalformedPayload: instruction payload cannot be decoded.
	MalformedPayload Kind = 4
	// MissingSignature: the acting identity did not sign.
	MissingSignature Kind = 5
	// IllegalOwner: the slot is not owned by this program.
	IllegalOwner Kind = 6
	// AlreadyInitialized: create targeted a slot that already holds a record.
	AlreadyInitialized Kind = 7
	// UninitializedRecord: update targeted a slot without a record.
	UninitializedRecord Kind = 8
	// AllocationFailed: the allocation primitive refused to create the slot.
	AllocationFailed Kind = 9
	// DerivationExhausted: no bump produced an off-curve address.
	DerivationExhausted Kind = 10
	// MalformedRecord: slot bytes do not decode as a record.
	MalformedRecord Kind = 11
	// MissingAccounts: fewer accounts were supplied than the instruction needs.
	MissingAccounts Kind = 12
)

// Category groups kinds by the nature of the failure.
type Category string

const (
	CategoryInput         Category = "InputError"
	CategoryAuthorization Category = "AuthorizationError"
	CategoryState         Category = "StateError"
	CategoryResource      Category = "ResourceError"
	CategoryFormat        Category = "FormatError"
)

var kindNames = map[Kind]string{
	DataTooLarge:        "DataTooLarge",
	AddressMismatch:     "AddressMismatch",
	EmptyInstruction:    "EmptyInstruction",
	UnknownOpcode:       "UnknownOpcode",
	MalformedPayload:    "MalformedPayload",
	MissingSignature:    "MissingSignature",
	IllegalOwner:        "IllegalOwner",
	AlreadyInitialized:  "AlreadyInitialized",
	UninitializedRecord: "UninitializedRecord",
	AllocationFailed:    "AllocationFailed",
	DerivationExhausted: "DerivationExhausted",
	MalformedRecord:     "MalformedRecord",
	MissingAccounts:     "MissingAccounts",
}

var kindCategories = map[Kind]Category{
	DataTooLarge:        CategoryInput,
	AddressMismatch:     CategoryAuthorization,
	EmptyInstruction:    CategoryInput,
	UnknownOpcode:       CategoryInput,
	MalformedPayload:    CategoryInput,
	MissingSignature:    CategoryAuthorization,
	IllegalOwner:        CategoryAuthorization,
	AlreadyInitialized:  CategoryState,
	UninitializedRecord: CategoryState,
	AllocationFailed:    CategoryResource,
	DerivationExhausted: CategoryResource,
	MalformedRecord:     CategoryFormat,
	MissingAccounts:     CategoryInput,
}

// String returns the kind name, e.g. "DataTooLarge".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Code returns the stable custom error code.
func (k Kind) Code() uint32 {
	return uint32(k)
}

// Category returns the category the kind belongs to.
func (k Kind) Category() Category {
	return kindCategories[k]
}

// ParseKind resolves a kind from its name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Error is a program failure with a stable code.
type Error struct {
	// Kind identifies the failure.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" && e.Err == nil {
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a failure of the same kind, so sentinels
// below match any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrDataTooLarge        = &Error{Kind: DataTooLarge}
	ErrAddressMismatch     = &Error{Kind: AddressMismatch}
	ErrEmptyInstruction    = &Error{Kind: EmptyInstruction}
	ErrUnknownOpcode       = &Error{Kind: UnknownOpcode}
	ErrMalformedPayload    = &Error{Kind: MalformedPayload}
	ErrMissingSignature    = &Error{Kind: MissingSignature}
	ErrIllegalOwner        = &Error{Kind: IllegalOwner}
	ErrAlreadyInitialized  = &Error{Kind: AlreadyInitialized}
	ErrUninitializedRecord = &Error{Kind: UninitializedRecord}
	ErrAllocationFailed    = &Error{Kind: AllocationFailed}
	ErrDerivationExhausted = &Error{Kind: DerivationExhausted}
	ErrMalformedRecord     = &Error{Kind: MalformedRecord}
	ErrMissingAccounts     = &Error{Kind: MissingAccounts}
)

// New creates a failure of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a failure of the given kind around an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As extracts the failure from an error chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the kind of the first failure in err's chain.
// ok is false if err carries no failure.
func KindOf(err error) (kind Kind, ok bool) {
	fe, ok := As(err)
	if !ok {
		return 0, false
	}
	return fe.Kind, true
}
