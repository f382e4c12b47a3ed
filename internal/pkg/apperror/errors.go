package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
)

// Message — двуязычная пара сообщений для клиента. Площадка работает на
// арабском и английском, обе версии отдаются в теле ошибки.
type Message struct {
	AR string `json:"ar"`
	EN string `json:"en"`
}

type AppError struct {
	Code       ErrorCode
	Message    Message
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message.EN, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message.EN)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, msg Message) *AppError {
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, msg Message) *AppError {
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsMethodNotAllowed(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeMethodNotAllowed
}

// As извлекает AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

var (
	ErrAuctionNotFound = New(ErrCodeNotFound, Message{
		AR: "هذا الاعلان غير موجود",
		EN: "Auction Not Found",
	})
	ErrUserNotFound = New(ErrCodeNotFound, Message{
		AR: "المستخدم غير موجود",
		EN: "User Not Found",
	})
	ErrPaymentNotFound = New(ErrCodeNotFound, Message{
		AR: "عملية الدفع غير موجودة",
		EN: "Payment Not Found",
	})
	ErrUnauthorized = New(ErrCodeUnauthorized, Message{
		AR: "يجب تسجيل الدخول",
		EN: "Authorization Required",
	})
	ErrInvalidCredentials = New(ErrCodeUnauthorized, Message{
		AR: "بيانات الدخول غير صحيحة",
		EN: "Invalid Credentials",
	})
	ErrOwnAuction = New(ErrCodeMethodNotAllowed, Message{
		AR: "هذا الاعلان من احد إعلاناتك",
		EN: "This auction is one of your created auctions",
	})
	ErrBidTooLow = New(ErrCodeMethodNotAllowed, Message{
		AR: "قم برفع السعر",
		EN: "Bid Amount Must Be Greater Than Current Amount",
	})
	ErrActionNotAllowed = New(ErrCodeMethodNotAllowed, Message{
		AR: "هذا الإجراء غير متاح في الحالة الحالية",
		EN: "Action Is Not Valid For Current Auction Status",
	})
	ErrAlreadyPaid = New(ErrCodeMethodNotAllowed, Message{
		AR: "تم الدفع مسبقا",
		EN: "already paid",
	})
	ErrNoMainLocation = New(ErrCodeMethodNotAllowed, Message{
		AR: "ادخل عنوان رئيسي",
		EN: "Set one location as main",
	})
	ErrCannotPurchase = New(ErrCodeMethodNotAllowed, Message{
		AR: "لايمكنك شراء المزاد",
		EN: "You Can not Purchase the product",
	})
	ErrCannotComplete = New(ErrCodeMethodNotAllowed, Message{
		AR: "لايمكنك تكملة العملية",
		EN: "You Can not Complete Operation",
	})
	ErrCannotCancel = New(ErrCodeMethodNotAllowed, Message{
		AR: "عذرا! لا يمكنك إلغاء هذا المزاد",
		EN: "Sorry! You cannot cancel this auction",
	})
	ErrAuctionExpired = New(ErrCodeMethodNotAllowed, Message{
		AR: "تم غلق الاعلان",
		EN: "Auction has been Expired",
	})
	ErrBuyNowNotAllowed = New(ErrCodeMethodNotAllowed, Message{
		AR: "الاعلان غير قابل للشراء المباشر",
		EN: "Buy Now Is Not Allowed",
	})
	ErrStartDateNotValid = New(ErrCodeMethodNotAllowed, Message{
		AR: "تاريخ بدء المزاد لم يعد صالحا للنشر",
		EN: "Auction Start Date Now Not Valid For Publishing",
	})
	// ErrOperationFailed маскирует ошибки шлюза и хранилища: наружу уходит
	// общий текст, детали остаются в логах.
	ErrOperationFailed = New(ErrCodeInternal, Message{
		AR: "عذراً، فشلت العملية. حاول مرة أخرى لاحقا",
		EN: "Operation failed, please try again later",
	})
)
