package model

import (
	"encoding/json"

	"ondc-bpp/internal/ondcerr"
)

// Request is any inbound protocol call. Context and Message stay raw so the
// context can be echoed exactly and each action decodes its own message.
type Request struct {
	Context json.RawMessage `json:"context"`
	Message json.RawMessage `json:"message"`
}

// Context is the envelope that correlates a request with its callback.
// The custom ondc_domain / ondc_action tags are registered by schemagate.
type Context struct {
	Domain        string `json:"domain" validate:"required,ondc_domain"`
	Country       string `json:"country,omitempty"`
	City          string `json:"city,omitempty"`
	Action        string `json:"action" validate:"required,ondc_action"`
	CoreVersion   string `json:"core_version,omitempty"`
	BapID         string `json:"bap_id" validate:"required"`
	BapURI        string `json:"bap_uri" validate:"required"`
	BppID         string `json:"bpp_id,omitempty"`
	BppURI        string `json:"bpp_uri,omitempty"`
	TransactionID string `json:"transaction_id" validate:"required"`
	MessageID     string `json:"message_id" validate:"required"`
	Timestamp     string `json:"timestamp" validate:"required"`
	Key           string `json:"key,omitempty"`
	TTL           string `json:"ttl,omitempty"`
}

// Callback is the body POSTed to bap_uri/on_<action>. Exactly one of
// Message or Error is set.
type Callback struct {
	Context Context        `json:"context"`
	Message any            `json:"message,omitempty"`
	Error   *ondcerr.Error `json:"error,omitempty"`
}

// Catalog is the on_search message.catalog payload.
type Catalog struct {
	BPPDescriptor   Descriptor    `json:"bpp/descriptor"`
	BPPFulfillments []Fulfillment `json:"bpp/fulfillments"`
	BPPProviders    []Provider    `json:"bpp/providers"`
}

type Descriptor struct {
	Name      string   `json:"name"`
	Code      string   `json:"code,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	ShortDesc string   `json:"short_desc,omitempty"`
	LongDesc  string   `json:"long_desc,omitempty"`
	Images    []string `json:"images"`
}

type Fulfillment struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Contact *Contact `json:"contact,omitempty"`
}

type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Provider struct {
	ID         string     `json:"id"`
	Time       *Time      `json:"time,omitempty"`
	Descriptor Descriptor `json:"descriptor"`
	TTL        string     `json:"ttl,omitempty"`
	Locations  []Location `json:"locations"`
	Items      []Item     `json:"items"`
	Tags       []TagGroup `json:"tags,omitempty"`
}

type Time struct {
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
}

type Location struct {
	ID      string          `json:"id"`
	GPS     string          `json:"gps"`
	Address LocationAddress `json:"address"`
	Time    *LocationTime   `json:"time,omitempty"`
}

type LocationAddress struct {
	Locality string `json:"locality,omitempty"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	AreaCode string `json:"area_code,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
}

type LocationTime struct {
	Label string        `json:"label"`
	Days  string        `json:"days"`
	Range TimeRange     `json:"range"`
	Sched *LocationSlot `json:"schedule,omitempty"`
}

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type LocationSlot struct {
	Holidays []string `json:"holidays"`
}

// Item is a catalog entry in wire format.
type Item struct {
	ID                   string        `json:"id"`
	Descriptor           Descriptor    `json:"descriptor"`
	Price                Price         `json:"price"`
	Quantity             *ItemQuantity `json:"quantity,omitempty"`
	CategoryID           string        `json:"category_id"`
	FulfillmentID        string        `json:"fulfillment_id,omitempty"`
	LocationID           string        `json:"location_id,omitempty"`
	Returnable           bool          `json:"@ondc/org/returnable"`
	Cancellable          bool          `json:"@ondc/org/cancellable"`
	SellerPickupReturn   bool          `json:"@ondc/org/seller_pickup_return"`
	TimeToShip           string        `json:"@ondc/org/time_to_ship"`
	ReturnWindow         string        `json:"@ondc/org/return_window"`
	AvailableOnCOD       bool          `json:"@ondc/org/available_on_cod"`
	ConsumerCare         string        `json:"@ondc/org/contact_details_consumer_care"`
	StatutoryPackagedReq *Statutory    `json:"@ondc/org/statutory_reqs_packaged_commodities,omitempty"`
	Tags                 []TagGroup    `json:"tags,omitempty"`
}

type Price struct {
	Currency     string `json:"currency"`
	Value        string `json:"value"`
	MaximumValue string `json:"maximum_value,omitempty"`
}

type ItemQuantity struct {
	Available *CountString `json:"available,omitempty"`
	Maximum   *CountString `json:"maximum,omitempty"`
	Unitized  *Unitized    `json:"unitized,omitempty"`
}

type CountString struct {
	Count string `json:"count"`
}

type Unitized struct {
	Measure Measure `json:"measure"`
}

type Measure struct {
	Unit  string `json:"unit"`
	Value string `json:"value"`
}

type Statutory struct {
	ManufacturerOrPackerName    string `json:"manufacturer_or_packer_name"`
	ManufacturerOrPackerAddress string `json:"manufacturer_or_packer_address"`
	CommonOrGenericName         string `json:"common_or_generic_name_of_commodity"`
	NetQuantity                 string `json:"net_quantity_or_measure_of_commodity_in_pkg"`
	MonthYearOfManufacture      string `json:"month_year_of_manufacture_packing_import"`
}

// TagGroup is the {code, list:[{code, value}]} tag shape.
type TagGroup struct {
	Code string `json:"code"`
	List []Tag  `json:"list"`
}

type Tag struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Order is the wire order exchanged from select to confirm and in every
// later on_* payload. Billing and fulfillment end are buyer-owned blocks
// kept raw so they are echoed without loss.
type Order struct {
	ID                string             `json:"id,omitempty"`
	State             string             `json:"state,omitempty"`
	Provider          *OrderProvider     `json:"provider,omitempty"`
	Items             []OrderItem        `json:"items"`
	Billing           json.RawMessage    `json:"billing,omitempty"`
	Fulfillments      []OrderFulfillment `json:"fulfillments,omitempty"`
	Quote             *Quote             `json:"quote,omitempty"`
	Payment           *Payment           `json:"payment,omitempty"`
	CancellationTerms []CancellationTerm `json:"cancellation_terms,omitempty"`
	Cancellation      *Cancellation      `json:"cancellation,omitempty"`
	Tags              []TagGroup         `json:"tags,omitempty"`
	CreatedAt         string             `json:"created_at,omitempty"`
	UpdatedAt         string             `json:"updated_at,omitempty"`
}

type OrderProvider struct {
	ID        string  `json:"id"`
	Locations []IDRef `json:"locations,omitempty"`
}

type IDRef struct {
	ID string `json:"id"`
}

type OrderItem struct {
	ID            string    `json:"id"`
	FulfillmentID string    `json:"fulfillment_id,omitempty"`
	LocationID    string    `json:"location_id,omitempty"`
	Quantity      ItemCount `json:"quantity"`
	Price         *Price    `json:"price,omitempty"`
}

type ItemCount struct {
	Count int `json:"count"`
}

type OrderFulfillment struct {
	ID           string            `json:"id"`
	Type         string            `json:"type,omitempty"`
	ProviderName string            `json:"@ondc/org/provider_name,omitempty"`
	Category     string            `json:"@ondc/org/category,omitempty"`
	TAT          string            `json:"@ondc/org/TAT,omitempty"`
	Tracking     bool              `json:"tracking"`
	State        *FulfillmentState `json:"state,omitempty"`
	Start        json.RawMessage   `json:"start,omitempty"`
	End          json.RawMessage   `json:"end,omitempty"`
}

type FulfillmentState struct {
	Descriptor StateDescriptor `json:"descriptor"`
}

type StateDescriptor struct {
	Code string `json:"code"`
}

type Quote struct {
	Price   Price         `json:"price"`
	Breakup []BreakupLine `json:"breakup"`
	TTL     string        `json:"ttl,omitempty"`
}

// Title types of quote breakup lines.
const (
	TitleItem     = "item"
	TitleDelivery = "delivery"
	TitlePacking  = "packing"
	TitleTax      = "tax"
)

type BreakupLine struct {
	ItemID       string       `json:"@ondc/org/item_id"`
	ItemQuantity *ItemCount   `json:"@ondc/org/item_quantity,omitempty"`
	Title        string       `json:"title"`
	TitleType    string       `json:"@ondc/org/title_type"`
	Price        Price        `json:"price"`
	Item         *BreakupItem `json:"item,omitempty"`
}

type BreakupItem struct {
	Quantity *ItemQuantity `json:"quantity,omitempty"`
	Price    Price         `json:"price"`
}

type Payment struct {
	URI                    string             `json:"uri,omitempty"`
	TLMethod               string             `json:"tl_method,omitempty"`
	Params                 *PaymentParams     `json:"params,omitempty"`
	Type                   string             `json:"type"`
	Status                 string             `json:"status"`
	CollectedBy            string             `json:"collected_by"`
	BuyerAppFinderFeeType  string             `json:"@ondc/org/buyer_app_finder_fee_type,omitempty"`
	BuyerAppFinderFeeValue string             `json:"@ondc/org/buyer_app_finder_fee_amount,omitempty"`
	SettlementBasis        string             `json:"@ondc/org/settlement_basis,omitempty"`
	SettlementWindow       string             `json:"@ondc/org/settlement_window,omitempty"`
	WithholdingAmount      string             `json:"@ondc/org/withholding_amount,omitempty"`
	SettlementDetails      []SettlementDetail `json:"@ondc/org/settlement_details,omitempty"`
}

type PaymentParams struct {
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type SettlementDetail struct {
	Counterparty      string `json:"settlement_counterparty"`
	Phase             string `json:"settlement_phase"`
	Type              string `json:"settlement_type"`
	BankAccountNo     string `json:"settlement_bank_account_no,omitempty"`
	IFSCCode          string `json:"settlement_ifsc_code,omitempty"`
	BeneficiaryName   string `json:"beneficiary_name,omitempty"`
	SettlementStatus  string `json:"settlement_status,omitempty"`
	SettlementRefNo   string `json:"settlement_reference,omitempty"`
	SettlementTimeRef string `json:"settlement_timestamp,omitempty"`
}

type CancellationTerm struct {
	FulfillmentState   FulfillmentState `json:"fulfillment_state"`
	ReasonRequired     bool             `json:"reason_required"`
	CancellationFee    CancellationFee  `json:"cancellation_fee"`
	ExternalRefundable bool             `json:"external_refundable,omitempty"`
}

type CancellationFee struct {
	Percentage string `json:"percentage"`
}

type Cancellation struct {
	CancelledBy string     `json:"cancelled_by"`
	Reason      *IDRefDesc `json:"reason,omitempty"`
}

type IDRefDesc struct {
	ID string `json:"id"`
}

// Billing is the typed view of the buyer billing block.
type Billing struct {
	Name    string         `json:"name"`
	Address BillingAddress `json:"address"`
	Email   string         `json:"email,omitempty"`
	Phone   string         `json:"phone,omitempty"`
}

type BillingAddress struct {
	Name     string `json:"name,omitempty"`
	Building string `json:"building,omitempty"`
	Locality string `json:"locality,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	AreaCode string `json:"area_code,omitempty"`
}

// FulfillmentEnd is the typed view of fulfillments[].end.
type FulfillmentEnd struct {
	Location struct {
		GPS     string          `json:"gps"`
		Address json.RawMessage `json:"address,omitempty"`
	} `json:"location"`
}

// OrderMessage is message for select, init, confirm and update.
type OrderMessage struct {
	Order        Order  `json:"order"`
	UpdateTarget string `json:"update_target,omitempty"`
}

// OrderIDMessage is message for status and track.
type OrderIDMessage struct {
	OrderID string `json:"order_id"`
}

// CancelMessage is message for cancel.
type CancelMessage struct {
	OrderID              string `json:"order_id"`
	CancellationReasonID string `json:"cancellation_reason_id"`
}

// RatingMessage is message for rating.
type RatingMessage struct {
	RatingCategory string `json:"rating_category"`
	ID             string `json:"id"`
	Value          string `json:"value"`
}

// SupportMessage is message for support.
type SupportMessage struct {
	RefID string `json:"ref_id"`
}
