package schemagate

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ondc-bpp/internal/model"
	"ondc-bpp/internal/ondcerr"
)

// FreshnessWindow bounds how far a context timestamp may drift from now in
// production.
const FreshnessWindow = 5 * time.Minute

var supportedDomains = map[string]bool{
	"ONDC:RET10": true, "ONDC:RET11": true, "ONDC:RET12": true, "ONDC:RET13": true,
	"ONDC:RET14": true, "ONDC:RET15": true, "ONDC:RET16": true, "ONDC:RET18": true,
}

var supportedActions = map[string]bool{
	"search": true, "select": true, "init": true, "confirm": true, "status": true,
	"track": true, "cancel": true, "update": true, "rating": true, "support": true,
	"issue": true, "issue_status": true, "receiver_recon": true,
}

// SupportedAction reports whether action is a verb this seller serves.
func SupportedAction(action string) bool {
	return supportedActions[action]
}

// go-playground/validator/v10: field names are reported by their json tag so
// error messages name the wire field.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ondc_domain", func(fl validator.FieldLevel) bool {
		return supportedDomains[fl.Field().String()]
	})
	_ = v.RegisterValidation("ondc_action", func(fl validator.FieldLevel) bool {
		return supportedActions[fl.Field().String()]
	})
	return v
}

// Gate validates inbound envelopes.
type Gate struct {
	enforceFreshness bool
	now              func() time.Time
}

// NewGate returns a Gate. Timestamp freshness is only checked against the
// production network; conformance harnesses replay old requests elsewhere.
func NewGate(production bool) *Gate {
	return &Gate{enforceFreshness: production, now: time.Now}
}

// ParseContext decodes raw into a Context, validating it. The returned
// error is ready to be sent in a NACK.
func (g *Gate) ParseContext(raw json.RawMessage) (*model.Context, *ondcerr.Error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ondcerr.New(ondcerr.CodeInvalidContext, "Missing context object")
	}
	var c model.Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ondcerr.New(ondcerr.CodeInvalidContext, "Malformed context object")
	}
	if verr := g.ValidateContext(&c); verr != nil {
		return &c, verr
	}
	return &c, nil
}

// ValidateContext checks, in order: required fields, domain, action and,
// in production, timestamp freshness.
func (g *Gate) ValidateContext(c *model.Context) *ondcerr.Error {
	if c == nil {
		return ondcerr.New(ondcerr.CodeInvalidContext, "Missing context object")
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return ondcerr.New(ondcerr.CodeInvalidContext, err.Error())
		}
		// Missing fields win over value checks regardless of field order.
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return ondcerr.Newf(ondcerr.CodeInvalidContext, "Missing required context field: %s", fe.Field())
			}
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "ondc_domain":
				return ondcerr.Newf(ondcerr.CodeInvalidDomain, "Invalid domain: %s", c.Domain)
			case "ondc_action":
				return ondcerr.Newf(ondcerr.CodeInvalidAction, "Invalid action: %s", c.Action)
			}
		}
		return ondcerr.New(ondcerr.CodeInvalidContext, err.Error())
	}

	if g.enforceFreshness {
		ts, err := time.Parse(time.RFC3339Nano, c.Timestamp)
		if err != nil {
			log.Printf("SchemaGate: unparsable context timestamp %q: %v", c.Timestamp, err)
			return nil
		}
		if math.Abs(g.now().Sub(ts).Seconds()) > FreshnessWindow.Seconds() {
			return ondcerr.New(ondcerr.CodeStaleTimestamp, "Request timestamp outside TTL window")
		}
	}
	return nil
}
