package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/2b33rs/codevision-backend/internal/cmyk"
)

type ProductCategory string

const CategoryTShirt ProductCategory = "T_SHIRT"

type ShirtSize string

const (
	SizeS  ShirtSize = "S"
	SizeM  ShirtSize = "M"
	SizeL  ShirtSize = "L"
	SizeXL ShirtSize = "XL"
)

// OrderType tags production orders with the reason they were raised.
type OrderType string

const (
	OrderTypeStandard  OrderType = "STANDARD"
	OrderTypeComplaint OrderType = "COMPLAINT"
	OrderTypeInternal  OrderType = "INTERNAL"
)

type CustomerType string

const (
	CustomerWebshop  CustomerType = "WEBSHOP"
	CustomerBusiness CustomerType = "BUSINESS"
)

type ComplaintReason string

const (
	ReasonWrongSize      ComplaintReason = "WRONG_SIZE"
	ReasonWrongColor     ComplaintReason = "WRONG_COLOR"
	ReasonPrintIncorrect ComplaintReason = "PRINT_INCORRECT"
	ReasonPrintOffCenter ComplaintReason = "PRINT_OFF_CENTER"
	ReasonDamagedItem    ComplaintReason = "DAMAGED_ITEM"
	ReasonStained        ComplaintReason = "STAINED"
	ReasonLateDelivery   ComplaintReason = "LATE_DELIVERY"
	ReasonWrongProduct   ComplaintReason = "WRONG_PRODUCT"
	ReasonMissingItem    ComplaintReason = "MISSING_ITEM"
	ReasonBadQuality     ComplaintReason = "BAD_QUALITY"
	ReasonNotAsDescribed ComplaintReason = "NOT_AS_DESCRIBED"
	ReasonOther          ComplaintReason = "OTHER"
)

type ComplaintKind string

const (
	ComplaintIntern ComplaintKind = "INTERN"
	ComplaintExtern ComplaintKind = "EXTERN"
)

type Customer struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Email     string       `json:"email" db:"email"`
	Phone     string       `json:"phone" db:"phone"`
	Country   string       `json:"addr_country" db:"addr_country"`
	City      string       `json:"addr_city" db:"addr_city"`
	Zip       string       `json:"addr_zip" db:"addr_zip"`
	Street    string       `json:"addr_street" db:"addr_street"`
	Line1     string       `json:"addr_line1" db:"addr_line1"`
	Line2     string       `json:"addr_line2" db:"addr_line2"`
	Type      CustomerType `json:"customer_type" db:"customer_type"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

type Order struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OrderNumber string     `json:"order_number" db:"order_number"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"` // nil for internal restock orders
	Positions   []Position `json:"positions" db:"-"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Position struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	OrderID           uuid.UUID         `json:"order_id" db:"order_id"`
	OrderNumber       string            `json:"order_number,omitempty" db:"-"` // joined from orders, read-only
	PosNumber         int               `json:"pos_number" db:"pos_number"`
	Name              string            `json:"name" db:"name"`
	Description       string            `json:"description,omitempty" db:"description"`
	Amount            int               `json:"amount" db:"amount"`
	Price             decimal.Decimal   `json:"price" db:"price"`
	Category          ProductCategory   `json:"product_category" db:"product_category"`
	Design            string            `json:"design" db:"design"`
	Color             string            `json:"color" db:"color"`
	Size              ShirtSize         `json:"shirt_size" db:"shirt_size"`
	SubType           string            `json:"typ,omitempty" db:"typ"`
	StandardProductID *uuid.UUID        `json:"standard_product_id,omitempty" db:"standard_product_id"`
	Status            PositionStatus    `json:"status" db:"status"`
	ProductionOrders  []ProductionOrder `json:"production_orders" db:"-"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// Key is the position's composite business key.
func (p Position) Key() Key {
	return Key{OrderNumber: p.OrderNumber, PosNumber: p.PosNumber}
}

// ProductTemplate is sent verbatim to the production service. Color is nil
// when the position does not constrain the color.
type ProductTemplate struct {
	Category      string         `json:"kategorie"`
	ArticleNumber string         `json:"artikelnummer"`
	Size          string         `json:"groesse"`
	Color         *cmyk.Channels `json:"farbcode,omitempty"`
	SubType       string         `json:"typ"`
}

type ProductionOrder struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	PositionID      *uuid.UUID            `json:"position_id,omitempty" db:"position_id"`
	SequenceNumber  int                   `json:"productionorder_number" db:"sequence_number"`
	Amount          int                   `json:"amount" db:"amount"`
	DesignURL       string                `json:"design_url" db:"design_url"`
	OrderType       OrderType             `json:"order_type" db:"order_type"`
	DyeingNecessary bool                  `json:"dyeing_necessary" db:"dyeing_necessary"`
	MaterialID      *int64                `json:"material_id,omitempty" db:"material_id"`
	Template        ProductTemplate       `json:"product_template" db:"product_template"`
	Status          ProductionOrderStatus `json:"status" db:"status"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" db:"updated_at"`
}

type StandardProduct struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Name               string          `json:"name" db:"name"`
	Category           ProductCategory `json:"product_category" db:"product_category"`
	Color              string          `json:"color" db:"color"`
	Size               ShirtSize       `json:"shirt_size" db:"shirt_size"`
	SubTypes           []string        `json:"typ" db:"typ"`
	MinAmount          int             `json:"min_amount" db:"min_amount"`
	AmountInProduction int             `json:"amount_in_production" db:"amount_in_production"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// PrimarySubType is the sub-type used when the product is turned into a position.
func (p StandardProduct) PrimarySubType() string {
	if len(p.SubTypes) == 0 {
		return ""
	}
	return p.SubTypes[0]
}

type Complaint struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PositionID     uuid.UUID       `json:"position_id" db:"position_id"`
	Reason         ComplaintReason `json:"complaint_reason" db:"complaint_reason"`
	Kind           ComplaintKind   `json:"complaint_kind" db:"complaint_kind"`
	Note           string          `json:"note,omitempty" db:"note"`
	CreateNewOrder bool            `json:"create_new_order" db:"create_new_order"`
	NewOrderID     *uuid.UUID      `json:"new_order_id,omitempty" db:"new_order_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ComplaintFilter selects complaints by exactly one of its fields; all empty lists everything.
type ComplaintFilter struct {
	PositionID *uuid.UUID
	OrderID    *uuid.UUID
	CustomerID *uuid.UUID
}
