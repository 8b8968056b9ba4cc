package orders

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindEmptyCart         Kind = "EMPTY_CART"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindCommitFailed      Kind = "ORDER_COMMIT_FAILED"
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindConflict          Kind = "CONFLICT"
	KindBadCredentials    Kind = "INVALID_CREDENTIALS"
)

// Error membawa klasifikasi untuk dipetakan ke status HTTP.
type Error struct {
	Kind      Kind
	ProductID int64 // diisi untuk INSUFFICIENT_STOCK
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, orders.ErrEmptyCart).
// CONFLICT errors also compare Msg, ErrEmailTaken is not ErrProductInUse.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Kind == KindConflict && t.Msg != e.Msg {
		return false
	}
	return t.ProductID == 0 || t.ProductID == e.ProductID
}

var (
	ErrEmptyCart         = &Error{Kind: KindEmptyCart, Msg: "cart is empty"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Msg: "insufficient stock"}
	ErrCommitFailed      = &Error{Kind: KindCommitFailed, Msg: "failed to create order"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "insufficient permissions"}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Msg: "invalid status transition"}
	ErrProductInUse      = &Error{Kind: KindConflict, Msg: "product is referenced by existing orders"}
	ErrEmailTaken        = &Error{Kind: KindConflict, Msg: "email already exists"}
	ErrBadCredentials    = &Error{Kind: KindBadCredentials, Msg: "invalid credentials"}

	// ErrStockConflict dikembalikan storage saat UPDATE stok bersyarat tidak mengenai baris
	// (stok sudah berubah sejak validasi).
	ErrStockConflict = errors.New("stock changed concurrently")
)

func insufficientStock(line CartLine) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		ProductID: line.ProductID,
		Msg:       fmt.Sprintf("insufficient stock for product: %s", line.Title),
	}
}

func commitFailed(err error) *Error {
	return &Error{Kind: KindCommitFailed, Msg: "failed to create order", Err: err}
}

// NotFound builds a NOT_FOUND error for the named entity.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

// KindOf returns the classification of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StockConflictError reports which product lost the race on a guarded decrement.
type StockConflictError struct {
	ProductID int64
	Quantity  int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("%v: product %d qty %d", ErrStockConflict, e.ProductID, e.Quantity)
}

func (e *StockConflictError) Unwrap() error { return ErrStockConflict }
