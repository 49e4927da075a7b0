// Package catalog builds the seller-side payloads of the retail flow:
// on_search catalogs, on_select quotes, on_init payment terms and the
// on_confirm order.
package catalog

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"ondc-bpp/internal/config"
	"ondc-bpp/internal/model"
	"ondc-bpp/internal/schemagate"
)

// Fulfillment types and the ids they are published under.
const (
	FulfillmentDelivery   = "Delivery"
	FulfillmentSelfPickup = "Self-Pickup"

	DeliveryFulfillmentID = "F1"
	PickupFulfillmentID   = "F2"
)

// Payment types.
const (
	PaymentOnOrder       = "ON-ORDER"
	PaymentOnFulfillment = "ON-FULFILLMENT"
)

// Builder turns seller settings and products into wire payloads.
type Builder struct {
	providerID string
	city       string
	country    string
	store      config.StoreSettings
	now        func() time.Time
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		providerID: cfg.SubscriberID,
		city:       cfg.City,
		country:    cfg.Country,
		store:      cfg.Store,
		now:        time.Now,
	}
}

// LocationID is the id of the single store location.
func (b *Builder) LocationID() string {
	return "LOC-" + b.city
}

// NormalizeGPS formats "lat,lng" to six decimal places. Anything that does
// not parse as two numbers becomes "0.000000,0.000000".
func NormalizeGPS(gps string) string {
	const zero = "0.000000,0.000000"
	parts := strings.Split(gps, ",")
	if len(parts) != 2 {
		return zero
	}
	lat, ok := parseCoordinate(parts[0])
	if !ok {
		return zero
	}
	lng, ok := parseCoordinate(parts[1])
	if !ok {
		return zero
	}
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// parseCoordinate accepts finite decimal numbers only; ParseFloat alone
// also takes "NaN" and "Inf".
func parseCoordinate(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Money formats an amount with two decimals.
func Money(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', 2, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (b *Builder) descriptor() model.Descriptor {
	name := b.store.LegalEntityName
	if name == "" {
		name = "ONDC Seller"
	}
	images := []string{}
	if b.store.Symbol != "" {
		images = append(images, b.store.Symbol)
	}
	return model.Descriptor{
		Name:      name,
		Symbol:    b.store.Symbol,
		ShortDesc: b.store.ShortDesc,
		LongDesc:  b.store.LongDesc,
		Images:    images,
	}
}

// Fulfillments lists the fulfillment types the store offers. Delivery is
// the default when nothing is enabled.
func (b *Builder) Fulfillments() []model.Fulfillment {
	contact := &model.Contact{Phone: b.store.ConsumerCarePhone, Email: b.store.ConsumerCareEmail}
	var out []model.Fulfillment
	if b.store.DeliveryEnabled {
		out = append(out, model.Fulfillment{ID: DeliveryFulfillmentID, Type: FulfillmentDelivery, Contact: contact})
	}
	if b.store.PickupEnabled {
		out = append(out, model.Fulfillment{ID: PickupFulfillmentID, Type: FulfillmentSelfPickup, Contact: contact})
	}
	if len(out) == 0 {
		out = append(out, model.Fulfillment{ID: DeliveryFulfillmentID, Type: FulfillmentDelivery, Contact: contact})
	}
	return out
}

// SupportedPaymentTypes lists payment types for quote and payment payloads.
// Prepaid is the default when nothing is enabled.
func (b *Builder) SupportedPaymentTypes() []string {
	var out []string
	if b.store.PrepaidEnabled {
		out = append(out, PaymentOnOrder)
	}
	if b.store.CODEnabled {
		out = append(out, PaymentOnFulfillment)
	}
	if len(out) == 0 {
		out = append(out, PaymentOnOrder)
	}
	return out
}

func (b *Builder) timingTags() []model.TagGroup {
	start := strings.ReplaceAll(b.store.HoursStart, ":", "")
	end := strings.ReplaceAll(b.store.HoursEnd, ":", "")
	var groups []model.TagGroup
	for _, typ := range []string{"Order", "Delivery", "Self-Pickup"} {
		if typ == "Delivery" && !b.store.DeliveryEnabled {
			continue
		}
		if typ == "Self-Pickup" && !b.store.PickupEnabled {
			continue
		}
		groups = append(groups, model.TagGroup{
			Code: "timing",
			List: []model.Tag{
				{Code: "type", Value: typ},
				{Code: "location", Value: b.LocationID()},
				{Code: "day_from", Value: "1"},
				{Code: "day_to", Value: "7"},
				{Code: "time_from", Value: start},
				{Code: "time_to", Value: end},
			},
		})
	}
	return groups
}

// BuildCatalog assembles the on_search catalog from the given products.
// Inactive or invalid products are left out. Payment types are never part
// of a catalog.
func (b *Builder) BuildCatalog(products []model.Product) model.Catalog {
	valid, rejections := schemagate.FilterProducts(products)
	if len(rejections) > 0 {
		log.Printf("Catalog: %d product(s) skipped", len(rejections))
	}

	items := make([]model.Item, 0, len(valid))
	for _, p := range valid {
		items = append(items, b.Item(p))
	}

	desc := b.descriptor()
	provider := model.Provider{
		ID:         b.providerID,
		Time:       &model.Time{Label: "enable", Timestamp: b.now().UTC().Format(time.RFC3339)},
		Descriptor: desc,
		TTL:        "P1D",
		Locations: []model.Location{{
			ID:  b.LocationID(),
			GPS: NormalizeGPS(b.store.GPS),
			Address: model.LocationAddress{
				Locality: b.store.Locality,
				Street:   b.store.Street,
				City:     b.city,
				AreaCode: b.store.AreaCode,
				State:    b.store.State,
				Country:  b.country,
			},
			Time: &model.LocationTime{
				Label: "enable",
				Days:  b.store.Days,
				Range: model.TimeRange{
					Start: strings.ReplaceAll(b.store.HoursStart, ":", ""),
					End:   strings.ReplaceAll(b.store.HoursEnd, ":", ""),
				},
				Sched: &model.LocationSlot{Holidays: []string{}},
			},
		}},
		Items: items,
		Tags:  b.timingTags(),
	}

	return model.Catalog{
		BPPDescriptor:   desc,
		BPPFulfillments: b.Fulfillments(),
		BPPProviders:    []model.Provider{provider},
	}
}

// Item converts a product to its wire form.
func (b *Builder) Item(p model.Product) model.Item {
	currency := p.Currency
	if currency == "" {
		currency = b.store.Currency
	}
	maxPrice := p.MaxPrice
	if maxPrice == 0 {
		maxPrice = p.Price
	}
	maxQty := p.MaxQty
	if maxQty == 0 {
		maxQty = 999
	}
	minQty := p.MinQty
	if minQty == 0 {
		minQty = 1
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	symbol := ""
	if len(images) > 0 {
		symbol = images[0]
	}

	locationID := p.LocationID
	if locationID == "" {
		locationID = b.LocationID()
	}
	fulfillmentID := p.FulfillmentID
	if fulfillmentID == "" {
		fulfillmentID = DeliveryFulfillmentID
	}
	timeToShip := firstNonEmpty(p.TimeToShip, b.store.TimeToShip, "P1D")
	returnWindow := firstNonEmpty(p.ReturnWindow, b.store.ReturnWindow, "PT72H")
	care := p.ConsumerCare
	if care == "" {
		care = fmt.Sprintf("%s,%s,%s", firstNonEmpty(b.store.LegalEntityName, "Support"), b.store.ConsumerCareEmail, b.store.ConsumerCarePhone)
	}

	item := model.Item{
		ID: p.ID,
		Descriptor: model.Descriptor{
			Name:      p.Name,
			Code:      "1:" + strings.ReplaceAll(p.ID, "-", ""),
			Symbol:    symbol,
			ShortDesc: p.ShortDesc,
			LongDesc:  p.LongDesc,
			Images:    images,
		},
		Price: model.Price{
			Currency:     currency,
			Value:        Money(p.Price),
			MaximumValue: Money(maxPrice),
		},
		Quantity: &model.ItemQuantity{
			Available: &model.CountString{Count: strconv.Itoa(p.Available)},
			Maximum:   &model.CountString{Count: strconv.Itoa(maxQty)},
			Unitized:  &model.Unitized{Measure: model.Measure{Unit: "unit", Value: strconv.Itoa(minQty)}},
		},
		CategoryID:         p.Category,
		FulfillmentID:      fulfillmentID,
		LocationID:         locationID,
		Returnable:         p.Returnable,
		Cancellable:        p.Cancellable,
		SellerPickupReturn: p.SellerPickupReturn,
		TimeToShip:         timeToShip,
		ReturnWindow:       returnWindow,
		AvailableOnCOD:     p.AvailableOnCOD,
		ConsumerCare:       care,
		Tags: []model.TagGroup{
			{Code: "origin", List: []model.Tag{{Code: "country", Value: firstNonEmpty(p.CountryOfOrigin, "IND")}}},
			{Code: "attribute", List: []model.Tag{
				{Code: "brand", Value: p.Brand},
				{Code: "manufacturer", Value: p.Manufacturer},
			}},
		},
	}

	statutory := model.Statutory{
		ManufacturerOrPackerName:    p.ManufacturerName,
		ManufacturerOrPackerAddress: p.ManufacturerAddress,
		CommonOrGenericName:         p.CommonGenericName,
		NetQuantity:                 p.NetQuantityOrMeasure,
		MonthYearOfManufacture:      p.MonthYearOfManufacture,
	}
	if statutory != (model.Statutory{}) {
		item.StatutoryPackagedReq = &statutory
	}
	return item
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
