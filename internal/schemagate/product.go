package schemagate

import (
	"log"

	"ondc-bpp/internal/model"
)

// Rejection records a product left out of the catalog and why.
type Rejection struct {
	Scope  string `json:"scope"`
	Reason string `json:"reason"`
}

// ValidateProduct performs record-level validation before a product is
// published. An invalid product is skipped; the rest of the catalog goes out.
func ValidateProduct(p model.Product) (valid bool, rejectReason string) {
	if err := validate.Struct(p); err != nil {
		return false, err.Error()
	}
	if p.MinQty > 0 && p.MaxQty > 0 && p.MinQty > p.MaxQty {
		return false, "minimum quantity cannot be greater than maximum quantity"
	}
	return true, ""
}

// FilterProducts keeps active, valid products.
func FilterProducts(products []model.Product) ([]model.Product, []Rejection) {
	valid := make([]model.Product, 0, len(products))
	var rejections []Rejection
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		ok, reason := ValidateProduct(p)
		if !ok {
			log.Printf("SchemaGate: rejected product %s: %s", p.ID, reason)
			rejections = append(rejections, Rejection{Scope: "item:" + p.ID, Reason: reason})
			continue
		}
		valid = append(valid, p)
	}
	return valid, rejections
}
