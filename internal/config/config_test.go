package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "campus-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "campus-auth")
	}
	if cfg.JWTAudience != "campus-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "campus-api")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.JWTRefreshTTL != "168h" {
		t.Errorf("JWTRefreshTTL = %q, want %q", cfg.JWTRefreshTTL, "168h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Errorf("OTPMaxAttempts = %d, want 5", cfg.OTPMaxAttempts)
	}
	if cfg.OTPTTL() != 10*time.Minute {
		t.Errorf("OTPTTL = %v, want 10m", cfg.OTPTTL())
	}
	if cfg.ResendCooldown() != time.Minute {
		t.Errorf("ResendCooldown = %v, want 1m", cfg.ResendCooldown())
	}
	if cfg.MailDriver != "filesystem" {
		t.Errorf("MailDriver = %q, want filesystem", cfg.MailDriver)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
	if cfg.RateLimitPerMinute != 20 {
		t.Errorf("RateLimitPerMinute = %d, want 20", cfg.RateLimitPerMinute)
	}
	if cfg.TelemetryKafkaTopic != "campus-auth-events" {
		t.Errorf("TelemetryKafkaTopic = %q, want default", cfg.TelemetryKafkaTopic)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if got := cfg.AllowedEmailDomains(); !reflect.DeepEqual(got, []string{"khwopa.edu.np"}) {
		t.Errorf("AllowedEmailDomains = %v, want [khwopa.edu.np]", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9999")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("OTP_MAX_ATTEMPTS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9999")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.OTPMaxAttempts != 3 {
		t.Errorf("OTPMaxAttempts = %d, want 3", cfg.OTPMaxAttempts)
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // Should default to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production message", err.Error())
	}
}

func TestLoad_OTPReturnToClientDevelopment(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
	if !cfg.DevOTPEnabled() {
		t.Error("DevOTPEnabled should be true outside production")
	}
}

func TestLoad_MailDriver(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"filesystem", map[string]string{"MAIL_DRIVER": "filesystem"}, false},
		{"gmail", map[string]string{"MAIL_DRIVER": "gmail"}, false},
		{"smtp with host", map[string]string{"MAIL_DRIVER": "smtp", "SMTP_HOST": "smtp.example.com"}, false},
		{"smtp without host", map[string]string{"MAIL_DRIVER": "smtp"}, true},
		{"unknown", map[string]string{"MAIL_DRIVER": "pigeon"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tc.wantErr {
				t.Errorf("Load err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_OTPMaxAttemptsInvalid(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTP_MAX_ATTEMPTS", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject non-positive OTP_MAX_ATTEMPTS")
	}
}

func TestAccessTTL(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"invalid", 15 * time.Minute},
		{"0", 15 * time.Minute},
		{"-5m", 15 * time.Minute},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			cfg := &Config{JWTAccessTTL: tc.value}
			if got := cfg.AccessTTL(); got != tc.want {
				t.Errorf("AccessTTL = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRefreshTTL(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"336h", 14 * 24 * time.Hour},
		{"invalid", 168 * time.Hour},
		{"0", 168 * time.Hour},
		{"-1h", 168 * time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			cfg := &Config{JWTRefreshTTL: tc.value}
			if got := cfg.RefreshTTL(); got != tc.want {
				t.Errorf("RefreshTTL = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllowedEmailDomains(t *testing.T) {
	cfg := &Config{AllowedEmailDomainsRaw: " @Khwopa.edu.np, .kec.edu.np ,, tu.edu.np"}
	want := []string{"khwopa.edu.np", "kec.edu.np", "tu.edu.np"}
	if got := cfg.AllowedEmailDomains(); !reflect.DeepEqual(got, want) {
		t.Errorf("AllowedEmailDomains = %v, want %v", got, want)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.KafkaBrokersList(); got != nil {
		t.Errorf("nil config KafkaBrokersList = %v, want nil", got)
	}
	cfg := &Config{KafkaBrokers: "a:9092, b:9092,"}
	want := []string{"a:9092", "b:9092"}
	if got := cfg.KafkaBrokersList(); !reflect.DeepEqual(got, want) {
		t.Errorf("KafkaBrokersList = %v, want %v", got, want)
	}
}
