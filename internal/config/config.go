package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
	_ "time/tzdata" // zone database for APP_TIMEZONE on hosts without one

	"github.com/joho/godotenv" // .env support for local development
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are parsed with time.ParseDuration so
// policy knobs can be written as "10m" or "90s".
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	RabbitURL     string // broker URL; empty disables cross-instance fan-out
	SweepSchedule string // cron spec for the reservation timeout sweep
	AuditLogPath  string // file the audit consumer appends booking events to

	Location       *time.Location // zone for chart buckets and date-only query parameters
	WalletMaxTopUp float64        // largest single wallet top-up, in rupees

	Policy Policy
}

// Policy carries the booking fee and grace-window parameters.  None of these
// are authoritative constants; operators tune them per deployment.
type Policy struct {
	FreeWindow            time.Duration // arrival inside this window waives the reservation fee
	HardCutoff            time.Duration // reservations older than this become no-shows
	BillingUnit           time.Duration // durations are rounded up to whole units
	ReservationRateFactor float64       // multiplier on the slot rate for reserved time
	NoShowFee             bool          // charge the cutoff window when a reservation expires
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when present.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env: %v", err)
	}
	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		RabbitURL:     rabbitURL(),
		SweepSchedule: envStr("SWEEP_SCHEDULE", "@every 5s"),
		AuditLogPath:  envStr("AUDIT_LOG_PATH", "logs/booking.log"),

		Location:       location(envStr("APP_TIMEZONE", "Asia/Kolkata")),
		WalletMaxTopUp: envFloat("WALLET_MAX_TOPUP", 100000),

		Policy: LoadPolicy(),
	}
}

// LoadPolicy reads the booking policy.  Defaults match the behaviour the
// driver app shows: a 10 minute free window and a 30 minute hard cutoff.
func LoadPolicy() Policy {
	p := Policy{
		FreeWindow:            envDur("FREE_WINDOW", 10*time.Minute),
		HardCutoff:            envDur("HARD_CUTOFF", 30*time.Minute),
		BillingUnit:           envDur("BILLING_UNIT", 15*time.Minute),
		ReservationRateFactor: envFloat("RESERVATION_RATE_FACTOR", 1.0),
		NoShowFee:             envBool("NO_SHOW_FEE", true),
	}
	if p.BillingUnit <= 0 {
		p.BillingUnit = time.Minute
	}
	if p.FreeWindow > p.HardCutoff {
		p.FreeWindow = p.HardCutoff
	}
	if p.ReservationRateFactor < 0 {
		p.ReservationRateFactor = 0
	}
	return p
}

// location resolves an IANA zone name.  An unknown zone is fatal since
// every dashboard bucket would silently shift.
func location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid APP_TIMEZONE %q: %v", name, err)
	}
	return loc
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
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

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}
