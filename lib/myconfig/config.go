package myconfig

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string `mapstructure:"PORT"`
	BaseURL                  string `mapstructure:"BASE_URL"`
	PaymentsBaseURL          string `mapstructure:"PAYMENTS_BASE_URL"`
	APITokenSecret           string `mapstructure:"API_TOKEN_SECRET"`
	GatewayProvider          string `mapstructure:"GATEWAY_PROVIDER"`
	GatewayKeyID             string `mapstructure:"GATEWAY_KEY_ID"`
	GatewayKeySecret         string `mapstructure:"GATEWAY_KEY_SECRET"`
	GatewayAPIBaseURL        string `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayScriptURL         string `mapstructure:"GATEWAY_SCRIPT_URL"`
	GatewayScriptOrigin      string `mapstructure:"GATEWAY_SCRIPT_ORIGIN"`
	StripeAPIKey             string `mapstructure:"STRIPE_API_KEY"`
	MollieAPIKey             string `mapstructure:"MOLLIE_API_KEY"`
	CatalogFile              string `mapstructure:"CATALOG_FILE"`
	SuccessURL               string `mapstructure:"SUCCESS_URL"`
	FailureURL               string `mapstructure:"FAILURE_URL"`
	MerchantName             string `mapstructure:"MERCHANT_NAME"`
	ThemeColor               string `mapstructure:"THEME_COLOR"`
	CouponRateLimitPerMinute int    `mapstructure:"COUPON_RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins           string `mapstructure:"ALLOWED_ORIGINS"`
	LoginURL                 string `mapstructure:"LOGIN_URL"`
}

var keys = []string{
	"PORT",
	"BASE_URL",
	"PAYMENTS_BASE_URL",
	"API_TOKEN_SECRET",
	"GATEWAY_PROVIDER",
	"GATEWAY_KEY_ID",
	"GATEWAY_KEY_SECRET",
	"GATEWAY_API_BASE_URL",
	"GATEWAY_SCRIPT_URL",
	"GATEWAY_SCRIPT_ORIGIN",
	"STRIPE_API_KEY",
	"MOLLIE_API_KEY",
	"CATALOG_FILE",
	"SUCCESS_URL",
	"FAILURE_URL",
	"MERCHANT_NAME",
	"THEME_COLOR",
	"COUPON_RATE_LIMIT_PER_MINUTE",
	"ALLOWED_ORIGINS",
	"LOGIN_URL",
}

// Load reads an optional .env file in path; environment variables take precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("GATEWAY_PROVIDER", "signed")
	v.SetDefault("GATEWAY_SCRIPT_URL", "https://checkout.razorpay.com/v1/checkout.js")
	v.SetDefault("GATEWAY_SCRIPT_ORIGIN", "https://checkout.razorpay.com")
	v.SetDefault("GATEWAY_API_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("SUCCESS_URL", "/payment/success")
	v.SetDefault("FAILURE_URL", "/payment/failure")
	v.SetDefault("MERCHANT_NAME", "Consultancy")
	v.SetDefault("THEME_COLOR", "#1f4e79")
	v.SetDefault("COUPON_RATE_LIMIT_PER_MINUTE", 20)

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Error reading config file, using environment only: %s", err)
		}
	}

	config := Config{}
	err = v.Unmarshal(&config)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(config.PaymentsBaseURL) == "" {
		config.PaymentsBaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if strings.TrimSpace(config.LoginURL) == "" {
		config.LoginURL = strings.TrimRight(config.BaseURL, "/") + "/login"
	}
	if strings.TrimSpace(config.APITokenSecret) == "" {
		config.APITokenSecret = os.Getenv("GOOGLE_CLOUD_PROJECT") + "-local-secret"
		log.Printf("API_TOKEN_SECRET not set, using development secret")
	}

	return config, nil
}

func (c Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return []string{c.BaseURL}
	}
	origins := []string{}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
