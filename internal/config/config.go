package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings" // strings splits the credit package list
)

// CreditPackage describes one purchasable bundle of roadmap credits.  The
// Name is the identifier clients send to the checkout endpoint; Credits is
// the quantity applied to the balance after a confirmed payment; AmountCents
// is the price charged by the payment provider.
type CreditPackage struct {
    Name        string `json:"name"`
    Credits     int64  `json:"credits"`
    AmountCents int64  `json:"amount_cents"`
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and thresholds.
type Config struct {
    Env              string          // application environment (e.g. "dev", "prod")
    Port             string          // HTTP port to listen on
    DBUser           string          // database username
    DBPass           string          // database password (optional)
    DBHost           string          // database host address
    DBPort           string          // database port number
    DBName           string          // database name
    JWTSecret        string          // secret used to sign JWTs
    AccessTTLMin     int             // access token time-to-live in minutes
    BcryptCost       int             // bcrypt cost for password hashing
    SessionIdleSec   int             // seconds of inactivity after which a session expires
    SessionTouchSec  int             // seconds after which a request refreshes last_active_at
    LoginURL         string          // login page the session guard redirects to on rejection
    WebhookSecret    string          // shared secret for payment webhook signatures
    GeneratorBaseURL string          // base URL of the chat-completion API
    GeneratorAPIKey  string          // API key for the chat-completion API
    GeneratorModel   string          // model name requested from the chat-completion API
    RoadmapTTLDays   int             // days before a generated roadmap expires
    Packages         []CreditPackage // purchasable credit packages
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The session
// thresholds default to 600 s (idle timeout) and 60 s (touch debounce)
// when unset.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),                 // environment (dev/test/prod)
        Port:             must("APP_PORT"),                // port to bind the HTTP server
        DBUser:           must("DB_USER"),                 // database user
        DBPass:           os.Getenv("DB_PASS"),            // database password (empty allowed)
        DBHost:           must("DB_HOST"),                 // database host
        DBPort:           must("DB_PORT"),                 // database port
        DBName:           must("DB_NAME"),                 // database name
        JWTSecret:        must("JWT_SECRET"),              // secret used for signing JWTs
        AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"), // TTL for access tokens in minutes
        BcryptCost:       mustInt("BCRYPT_COST"),          // bcrypt cost factor
        SessionIdleSec:   intOr("SESSION_IDLE_SEC", 600),  // inactivity timeout in seconds
        SessionTouchSec:  intOr("SESSION_TOUCH_SEC", 60),  // debounce window for activity writes
        LoginURL:         strOr("LOGIN_URL", "/login"),    // redirect target for rejected sessions
        WebhookSecret:    must("PAYMENT_WEBHOOK_SECRET"),  // HMAC secret for payment webhooks
        GeneratorBaseURL: strOr("GENERATOR_BASE_URL", "https://api.openai.com/v1"), // chat-completion endpoint
        GeneratorAPIKey:  must("GENERATOR_API_KEY"),       // chat-completion API key
        GeneratorModel:   strOr("GENERATOR_MODEL", "gpt-4o-mini"), // chat-completion model
        RoadmapTTLDays:   intOr("ROADMAP_TTL_DAYS", 30),   // roadmap expiry in days
        Packages:         loadPackages(),                  // credit packages from CREDIT_PACKAGES
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// strOr returns the value of an optional environment variable or the given
// default when unset.
func strOr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// intOr returns the integer value of an optional environment variable or
// the given default when unset.  A set-but-unparseable value is fatal.
func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, v)
    }
    return n
}

// loadPackages parses the CREDIT_PACKAGES environment variable.  The format
// is a comma-separated list of name:credits:amount_cents triples, e.g.
// "starter:3:900,pro:10:2400".  When the variable is unset a default
// catalogue is returned.  Malformed entries are fatal: a mispriced package
// is worse than a missing one.
func loadPackages() []CreditPackage {
    raw := os.Getenv("CREDIT_PACKAGES")
    if raw == "" {
        return []CreditPackage{
            {Name: "starter", Credits: 3, AmountCents: 900},
            {Name: "pro", Credits: 10, AmountCents: 2400},
            {Name: "max", Credits: 30, AmountCents: 5900},
        }
    }
    var out []CreditPackage
    for _, part := range strings.Split(raw, ",") {
        fields := strings.Split(strings.TrimSpace(part), ":")
        if len(fields) != 3 {
            log.Fatalf("invalid CREDIT_PACKAGES entry: %q", part)
        }
        credits, err := strconv.ParseInt(fields[1], 10, 64)
        if err != nil || credits <= 0 {
            log.Fatalf("invalid credit count in CREDIT_PACKAGES entry: %q", part)
        }
        amount, err := strconv.ParseInt(fields[2], 10, 64)
        if err != nil || amount <= 0 {
            log.Fatalf("invalid amount in CREDIT_PACKAGES entry: %q", part)
        }
        out = append(out, CreditPackage{Name: fields[0], Credits: credits, AmountCents: amount})
    }
    return out
}

// PackageByName returns the configured package with the given name, or
// false when no such package exists.
func (c Config) PackageByName(name string) (CreditPackage, bool) {
    for _, p := range c.Packages {
        if p.Name == name {
            return p, true
        }
    }
    return CreditPackage{}, false
}
