package expense

import (
	"errors"
	"time"
)

type Expense struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"-"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	// calendar date, YYYY-MM-DD
	Date        string    `json:"date"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	PaymentType string    `json:"paymentType"`
	CreatedAt   time.Time `json:"-"`
}

var (
	ErrNotFound = errors.New("expense not found")
	// the row exists but is owned by a different user
	ErrNotOwner = errors.New("expense owned by another user")
)

var Categories = []string{
	"Food",
	"Transportation",
	"Entertainment",
	"Shopping",
	"Bills",
	"Other",
}

var PaymentTypes = []string{
	"Cash",
	"Credit Card",
	"Debit Card",
	"UPI",
	"PhonePe",
	"Google Pay",
	"Paytm",
	"Bank Transfer",
	"Net Banking",
}

type CreateExpenseRequest struct {
	Description string  `json:"description" binding:"required,min=1,max=200"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Date        string  `json:"date" binding:"required,datetime=2006-01-02"`
	Category    string  `json:"category" binding:"required,oneof=Food Transportation Entertainment Shopping Bills Other"`
	Location    string  `json:"location" binding:"omitempty,max=200"`
	PaymentType string  `json:"paymentType" binding:"required,oneof='Cash' 'Credit Card' 'Debit Card' 'UPI' 'PhonePe' 'Google Pay' 'Paytm' 'Bank Transfer' 'Net Banking'"`
}
