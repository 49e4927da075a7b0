package model

import (
	"encoding/json"
	"time"
)

// Order statuses (coarse lifecycle).
const (
	OrderPending    = "Pending"
	OrderAccepted   = "Accepted"
	OrderInProgress = "In-progress"
	OrderCompleted  = "Completed"
	OrderCancelled  = "Cancelled"
)

// Fulfillment states (granular delivery lifecycle).
const (
	FulfillmentPending        = "Pending"
	FulfillmentPacked         = "Packed"
	FulfillmentAgentAssigned  = "Agent-assigned"
	FulfillmentAtPickup       = "At-pickup"
	FulfillmentPickedUp       = "Order-picked-up"
	FulfillmentOutForDelivery = "Out-for-delivery"
	FulfillmentDelivered      = "Order-delivered"
	FulfillmentFailed         = "Delivery-failed"
	FulfillmentCancelled      = "Cancelled"
	FulfillmentRTOInitiated   = "RTO-Initiated"
	FulfillmentRTODelivered   = "RTO-Delivered"
	FulfillmentRTODisposed    = "RTO-Disposed"
)

// OrderRecord is the stored order aggregate.
type OrderRecord struct {
	OndcOrderID   string `json:"ondc_order_id"`
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	BapID         string `json:"bap_id"`
	BapURI        string `json:"bap_uri"`
	Domain        string `json:"domain"`
	City          string `json:"city"`
	Country       string `json:"country"`
	CoreVersion   string `json:"core_version"`

	Items   []OrderLine `json:"items"`
	Billing Billing     `json:"billing"`

	FulfillmentID    string          `json:"fulfillment_id"`
	FulfillmentType  string          `json:"fulfillment_type"`
	FulfillmentState string          `json:"fulfillment_state"`
	TrackingURL      string          `json:"tracking_url,omitempty"`
	ShippingGPS      string          `json:"shipping_gps,omitempty"`
	ShippingAddress  json.RawMessage `json:"shipping_address,omitempty"`

	PaymentType        string `json:"payment_type"`
	PaymentCollectedBy string `json:"payment_collected_by"`
	PaymentStatus      string `json:"payment_status"`

	OrderStatus          string  `json:"order_status"`
	CancellationReasonID string  `json:"cancellation_reason_id,omitempty"`
	SalesOrder           string  `json:"sales_order,omitempty"`
	TotalAmount          float64 `json:"total_amount"`
	Rating               string  `json:"rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderLine is one ordered item.
type OrderLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
}

// RecalculateTotals sets each line amount and the order total. It is called
// on every save.
func (o *OrderRecord) RecalculateTotals() {
	var total float64
	for i := range o.Items {
		o.Items[i].Amount = float64(o.Items[i].Quantity) * o.Items[i].Price
		total += o.Items[i].Amount
	}
	o.TotalAmount = total
}

// Product is a catalog record owned by the seller.
type Product struct {
	ID         string   `json:"ondc_product_id" validate:"required"`
	ItemCode   string   `json:"item_code,omitempty"`
	Name       string   `json:"product_name" validate:"required"`
	ShortDesc  string   `json:"short_desc,omitempty"`
	LongDesc   string   `json:"long_desc,omitempty"`
	Images     []string `json:"images,omitempty"`
	Category   string   `json:"category_code" validate:"required"`
	Currency   string   `json:"currency" validate:"required"`
	Price      float64  `json:"price" validate:"gte=0"`
	MaxPrice   float64  `json:"maximum_price,omitempty"`
	Available  int      `json:"available_quantity" validate:"gte=0"`
	MaxQty     int      `json:"maximum_quantity,omitempty"`
	MinQty     int      `json:"minimum_quantity,omitempty"`
	LocationID string   `json:"location_id,omitempty"`

	FulfillmentID      string `json:"fulfillment_id,omitempty"`
	Returnable         bool   `json:"is_returnable"`
	Cancellable        bool   `json:"is_cancellable"`
	SellerPickupReturn bool   `json:"seller_pickup_return"`
	AvailableOnCOD     bool   `json:"available_on_cod"`
	TimeToShip         string `json:"time_to_ship,omitempty"`
	ReturnWindow       string `json:"return_window,omitempty"`
	ConsumerCare       string `json:"consumer_care_contact,omitempty"`

	Brand           string `json:"brand,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	CountryOfOrigin string `json:"country_of_origin,omitempty"`

	ManufacturerName       string `json:"manufacturer_name,omitempty"`
	ManufacturerAddress    string `json:"manufacturer_address,omitempty"`
	CommonGenericName      string `json:"common_generic_name,omitempty"`
	NetQuantityOrMeasure   string `json:"net_quantity_or_measure,omitempty"`
	MonthYearOfManufacture string `json:"month_year_of_manufacture,omitempty"`

	IsActive bool `json:"is_active"`
}
