package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mirrored entity models. Each one is an instance of the generic
// MirroredRecord pattern; the per-type field mapping lives in the sync
// engine's schema tables, these structs exist for migration and for typed
// readers. Monetary amounts are stored as exact decimals in major units.

// Customer mirrors a remote customer. Deletion is a purge: the row is kept
// and tombstoned via DatePurged so a re-ordered create cannot resurrect it.
type Customer struct {
	MirroredRecord
	Email                  string          `gorm:"type:varchar(200);default:''" json:"email"`
	Name                   string          `gorm:"type:varchar(255);default:''" json:"name"`
	Description            string          `gorm:"type:text" json:"description"`
	Currency               string          `gorm:"type:varchar(3);default:''" json:"currency"`
	Balance                decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"balance"`
	Delinquent             bool            `gorm:"default:false" json:"delinquent"`
	DefaultPaymentMethodID *string         `gorm:"type:varchar(255);index" json:"default_payment_method_id,omitempty"`
	DatePurged             *time.Time      `gorm:"type:timestamp;default:null" json:"date_purged,omitempty"`
}

// Charge mirrors a remote charge.
type Charge struct {
	MirroredRecord
	Amount          decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"amount"`
	AmountRefunded  decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"amount_refunded"`
	Currency        string          `gorm:"type:varchar(3);default:''" json:"currency"`
	Status          string          `gorm:"type:varchar(30);default:'';index" json:"status"`
	Paid            bool            `gorm:"default:false" json:"paid"`
	Refunded        bool            `gorm:"default:false" json:"refunded"`
	Description     string          `gorm:"type:text" json:"description"`
	CustomerID      *string         `gorm:"type:varchar(255);index" json:"customer_id,omitempty"`
	InvoiceID       *string         `gorm:"type:varchar(255);index" json:"invoice_id,omitempty"`
	PaymentMethodID *string         `gorm:"type:varchar(255);index" json:"payment_method_id,omitempty"`
}

// Invoice mirrors a remote invoice. The customer relation is mandatory for
// referential integrity; an unexpanded reference is fetched on demand.
type Invoice struct {
	MirroredRecord
	Number         string          `gorm:"type:varchar(100);default:''" json:"number"`
	AmountDue      decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"amount_due"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"amount_paid"`
	Currency       string          `gorm:"type:varchar(3);default:''" json:"currency"`
	Status         string          `gorm:"type:varchar(30);default:'';index" json:"status"`
	Paid           bool            `gorm:"default:false" json:"paid"`
	CustomerID     *string         `gorm:"type:varchar(255);index" json:"customer_id,omitempty"`
	SubscriptionID *string         `gorm:"type:varchar(255);index" json:"subscription_id,omitempty"`
}

// Subscription mirrors a remote subscription. A deleted subscription is
// kept with status canceled and a DatePurged tombstone.
type Subscription struct {
	MirroredRecord
	Status             string     `gorm:"type:varchar(30);default:'';index" json:"status"`
	CustomerID         *string    `gorm:"type:varchar(255);index" json:"customer_id,omitempty"`
	PriceID            *string    `gorm:"type:varchar(255);index" json:"price_id,omitempty"`
	CurrentPeriodStart *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt         *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	DatePurged         *time.Time `gorm:"type:timestamp;default:null" json:"date_purged,omitempty"`
}

// PaymentMethod mirrors a remote payment method. Detached methods are
// deleted physically; the post-save hook maintains the owning customer's
// default payment method back-reference.
type PaymentMethod struct {
	MirroredRecord
	Type       string  `gorm:"type:varchar(30);default:'';index" json:"type"`
	CustomerID *string `gorm:"type:varchar(255);index" json:"customer_id,omitempty"`
	CardBrand  string  `gorm:"type:varchar(20);default:''" json:"card_brand"`
	CardLast4  string  `gorm:"type:varchar(4);default:''" json:"card_last4"`
}

// Product mirrors a remote product.
type Product struct {
	MirroredRecord
	Name        string `gorm:"type:varchar(255);default:''" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Active      bool   `gorm:"default:true" json:"active"`
}

// Price mirrors a remote price.
type Price struct {
	MirroredRecord
	Currency   string          `gorm:"type:varchar(3);default:''" json:"currency"`
	UnitAmount decimal.Decimal `gorm:"type:decimal(19,2);default:0" json:"unit_amount"`
	Interval   string          `gorm:"type:varchar(10);default:''" json:"interval"`
	Active     bool            `gorm:"default:true" json:"active"`
	ProductID  *string         `gorm:"type:varchar(255);index" json:"product_id,omitempty"`
}
