package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names used by the ONDC registry and gateway.
const (
	EnvStaging = "staging"
	EnvPreprod = "preprod"
	EnvProd    = "prod"
)

// Config is loaded once at process start and handed to every component
// constructor. Nothing in the repo reads the environment after Load.
type Config struct {
	HTTPAddr string
	// AdminToken enables the back-office routes when set; requests must
	// carry it in X-Admin-Token.
	AdminToken string

	Environment string
	// EnforceSignatures rejects requests whose Authorization header fails
	// verification. Conformance harnesses sign with test keys, so non-prod
	// deployments usually turn this off explicitly.
	EnforceSignatures bool

	SubscriberID  string
	SubscriberURL string
	UniqueKeyID   string
	Domain        string
	City          string
	Country       string
	CoreVersion   string

	SigningPrivateKey string
	SigningPublicKey  string

	EncryptionPrivateKey        string
	RegistryEncryptionPublicKey string

	RegistryURL     string
	LookupTimeout   time.Duration
	CallbackTimeout time.Duration
	KeyCacheTTL     time.Duration

	RedisAddr   string
	KafkaBroker string
	TaskQueue   string
	TaskTopic   string
	WorkerCount int

	AuditLogDir string

	// IssueBackends is the ordered ticketing chain for IGM issues; the
	// first available backend receives new tickets. The default "log"
	// chain keeps tickets in the document store.
	IssueBackends []string
	// AutoProgressInterval advances open orders one fulfillment step on a
	// timer when positive. Demo environments only.
	AutoProgressInterval time.Duration

	Store StoreSettings
}

// StoreSettings describes the seller storefront as it appears in catalogs
// and quotes.
type StoreSettings struct {
	LegalEntityName string
	ShortDesc       string
	LongDesc        string
	Symbol          string

	GPS        string
	Locality   string
	Street     string
	State      string
	AreaCode   string
	HoursStart string
	HoursEnd   string
	Days       string

	DeliveryEnabled bool
	PickupEnabled   bool
	PrepaidEnabled  bool
	CODEnabled      bool

	DeliveryCharge float64
	PackingCharge  float64
	TaxRate        float64
	Currency       string

	TimeToShip   string
	ReturnWindow string
	QuoteTTL     string

	ConsumerCareEmail string
	ConsumerCarePhone string

	// StrictAvailability fails select when a requested item cannot be
	// served instead of dropping the line from the quote.
	StrictAvailability bool

	BuyerFinderFeeType    string
	BuyerFinderFeeAmount  string
	SettlementWindow      string
	SettlementBasis       string
	SettlementBankAcct    string
	SettlementIFSC        string
	SettlementBeneficiary string
}

var registryURLs = map[string]string{
	EnvStaging: "https://staging.registry.ondc.org/lookup",
	EnvPreprod: "https://preprod.registry.ondc.org/ondc/lookup",
	EnvProd:    "https://prod.registry.ondc.org/ondc/lookup",
}

// RegistryLookupURL returns the lookup endpoint for env, defaulting to staging.
func RegistryLookupURL(env string) string {
	if u, ok := registryURLs[env]; ok {
		return u
	}
	return registryURLs[EnvStaging]
}

// Load builds a Config from the process environment.
func Load() *Config {
	env := strings.ToLower(getenv("ONDC_ENV", EnvStaging))
	cfg := &Config{
		HTTPAddr:          getenv("BPP_HTTP_ADDR", ":8080"),
		AdminToken:        getenv("BPP_ADMIN_TOKEN", ""),
		Environment:       env,
		EnforceSignatures: getbool("ONDC_ENFORCE_SIGNATURES", true),

		SubscriberID:  getenv("ONDC_SUBSCRIBER_ID", ""),
		SubscriberURL: getenv("ONDC_SUBSCRIBER_URL", ""),
		UniqueKeyID:   getenv("ONDC_UNIQUE_KEY_ID", ""),
		Domain:        getenv("ONDC_DOMAIN", "ONDC:RET10"),
		City:          getenv("ONDC_CITY", "std:080"),
		Country:       getenv("ONDC_COUNTRY", "IND"),
		CoreVersion:   getenv("ONDC_CORE_VERSION", "1.2.0"),

		SigningPrivateKey: getenv("ONDC_SIGNING_PRIVATE_KEY", ""),
		SigningPublicKey:  getenv("ONDC_SIGNING_PUBLIC_KEY", ""),

		EncryptionPrivateKey:        getenv("ONDC_ENCRYPTION_PRIVATE_KEY", ""),
		RegistryEncryptionPublicKey: getenv("ONDC_REGISTRY_ENCRYPTION_PUBLIC_KEY", ""),

		RegistryURL:     getenv("ONDC_REGISTRY_URL", RegistryLookupURL(env)),
		LookupTimeout:   getduration("ONDC_LOOKUP_TIMEOUT", 10*time.Second),
		CallbackTimeout: getduration("ONDC_CALLBACK_TIMEOUT", 30*time.Second),
		KeyCacheTTL:     getduration("ONDC_KEY_CACHE_TTL", time.Hour),

		RedisAddr:   getenv("REDIS_ADDR", ""),
		KafkaBroker: getenv("KAFKA_BROKER", "kafka:9092"),
		TaskQueue:   getenv("TASK_QUEUE", "local"),
		TaskTopic:   getenv("TASK_TOPIC", "ondc.tasks"),
		WorkerCount: getint("WORKER_COUNT", 8),

		AuditLogDir: getenv("AUDIT_LOG_DIR", "./data/audit"),

		IssueBackends:        getlist("IGM_BACKENDS", "log"),
		AutoProgressInterval: getduration("AUTO_PROGRESS_INTERVAL", 0),

		Store: StoreSettings{
			LegalEntityName: getenv("STORE_NAME", "ONDC Seller"),
			ShortDesc:       getenv("STORE_SHORT_DESC", "Quality products at best prices"),
			LongDesc:        getenv("STORE_LONG_DESC", "We provide a wide range of products with fast delivery"),
			Symbol:          getenv("STORE_SYMBOL", ""),

			GPS:        getenv("STORE_GPS", ""),
			Locality:   getenv("STORE_LOCALITY", ""),
			Street:     getenv("STORE_STREET", ""),
			State:      getenv("STORE_STATE", ""),
			AreaCode:   getenv("STORE_AREA_CODE", ""),
			HoursStart: getenv("STORE_HOURS_START", "09:00"),
			HoursEnd:   getenv("STORE_HOURS_END", "21:00"),
			Days:       getenv("STORE_DAYS", "1,2,3,4,5,6,7"),

			DeliveryEnabled: getbool("STORE_DELIVERY", true),
			PickupEnabled:   getbool("STORE_PICKUP", false),
			PrepaidEnabled:  getbool("STORE_PREPAID", true),
			CODEnabled:      getbool("STORE_COD", false),

			DeliveryCharge: getfloat("STORE_DELIVERY_CHARGE", 0),
			PackingCharge:  getfloat("STORE_PACKING_CHARGE", 0),
			TaxRate:        getfloat("STORE_TAX_RATE", 0),
			Currency:       getenv("STORE_CURRENCY", "INR"),

			TimeToShip:   getenv("STORE_TIME_TO_SHIP", "P1D"),
			ReturnWindow: getenv("STORE_RETURN_WINDOW", "PT72H"),
			QuoteTTL:     getenv("STORE_QUOTE_TTL", "P1D"),

			ConsumerCareEmail: getenv("STORE_CARE_EMAIL", ""),
			ConsumerCarePhone: getenv("STORE_CARE_PHONE", ""),

			StrictAvailability: getbool("STORE_STRICT_AVAILABILITY", false),

			BuyerFinderFeeType:    getenv("STORE_BFF_TYPE", "percent"),
			BuyerFinderFeeAmount:  getenv("STORE_BFF_AMOUNT", "3"),
			SettlementWindow:      getenv("STORE_SETTLEMENT_WINDOW", "P1D"),
			SettlementBasis:       getenv("STORE_SETTLEMENT_BASIS", "delivery"),
			SettlementBankAcct:    getenv("STORE_SETTLEMENT_ACCOUNT", ""),
			SettlementIFSC:        getenv("STORE_SETTLEMENT_IFSC", ""),
			SettlementBeneficiary: getenv("STORE_SETTLEMENT_BENEFICIARY", ""),
		},
	}
	return cfg
}

// IsProduction reports whether the process talks to the production network.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProd
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getlist(key, def string) []string {
	var out []string
	for _, v := range strings.Split(getenv(key, def), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
