package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MarcGrol/consultcheckout/lib/myauth"
	"github.com/MarcGrol/consultcheckout/lib/myconfig"
	"github.com/MarcGrol/consultcheckout/lib/myevents"
	"github.com/MarcGrol/consultcheckout/lib/myhttpclient"
	"github.com/MarcGrol/consultcheckout/lib/mypublisher"
	"github.com/MarcGrol/consultcheckout/lib/mypubsub"
	"github.com/MarcGrol/consultcheckout/lib/myqueue"
	"github.com/MarcGrol/consultcheckout/lib/mystore"
	"github.com/MarcGrol/consultcheckout/lib/mytime"
	"github.com/MarcGrol/consultcheckout/lib/myuuid"
	"github.com/MarcGrol/consultcheckout/lib/myvault"
	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
	"github.com/MarcGrol/consultcheckout/services/checkoutevents"
	"github.com/MarcGrol/consultcheckout/services/checkoutflow"
	"github.com/MarcGrol/consultcheckout/services/checkoutweb"
	"github.com/MarcGrol/consultcheckout/services/payments"
	"github.com/MarcGrol/consultcheckout/services/warmup"
)

const (
	serviceTokenTTL         = 5 * time.Minute
	sessionEvictionInterval = 10 * time.Minute
)

func main() {
	c := context.Background()

	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	config, err := myconfig.Load(".")
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err)
	}

	router := mux.NewRouter()
	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}
	issuer := myauth.NewIssuer(config.APITokenSecret, serviceTokenTTL, nower)

	publisher, publisherCleanup := createPublisher(c, router, nower)
	defer publisherCleanup()

	paymentsCleanup := createPaymentsService(c, router, config, issuer, publisher, nower, uuider)
	defer paymentsCleanup()

	createCheckoutService(c, router, config, issuer, nower, uuider)

	startWebServerBlocking(config, router)
}

func createPublisher(c context.Context, router *mux.Router, nower mytime.Nower) (*mypublisher.TransactionalPublisher, func()) {
	outbox, outboxCleanup, err := mystore.New[myevents.EventEnvelope](c)
	if err != nil {
		log.Fatalf("Error creating outbox store: %s", err)
	}

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating queue: %s", err)
	}

	publisher := mypublisher.New(c, outbox, pubsub, queue, nower)
	err = publisher.CreateTopic(c, checkoutevents.TopicName)
	if err != nil {
		log.Fatalf("Error creating topic %s: %s", checkoutevents.TopicName, err)
	}
	err = publisher.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering publisher endpoints: %s", err)
	}

	return publisher, func() {
		queueCleanup()
		pubsubCleanup()
		outboxCleanup()
	}
}

func createPaymentsService(c context.Context, router *mux.Router, config myconfig.Config, issuer *myauth.Issuer, publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer) func() {
	orderStore, orderStoreCleanup, err := mystore.New[payments.Order](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}

	engagementStore, engagementStoreCleanup, err := mystore.New[checkoutapi.Engagement](c)
	if err != nil {
		log.Fatalf("Error creating engagement store: %s", err)
	}

	vault, vaultCleanup, err := myvault.New(c)
	if err != nil {
		log.Fatalf("Error creating vault: %s", err)
	}

	catalog, err := payments.LoadCatalog(config.CatalogFile)
	if err != nil {
		log.Fatalf("Error loading catalog: %s", err)
	}

	gateway, err := payments.NewGateway(config)
	if err != nil {
		log.Fatalf("Error creating payment gateway: %s", err)
	}

	registry := prometheus.NewRegistry()
	service, err := payments.NewWebService(payments.Options{
		Catalog:                  catalog,
		Gateway:                  gateway,
		Issuer:                   issuer,
		Registry:                 registry,
		CouponRateLimitPerMinute: config.CouponRateLimitPerMinute,
		LoginURL:                 config.LoginURL,
	}, nower, uuider, orderStore, engagementStore, vault, publisher)
	if err != nil {
		log.Fatalf("Error creating payments service: %s", err)
	}
	err = service.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering payments endpoints: %s", err)
	}

	return func() {
		vaultCleanup()
		engagementStoreCleanup()
		orderStoreCleanup()
	}
}

func createCheckoutService(c context.Context, router *mux.Router, config myconfig.Config, issuer *myauth.Issuer, nower mytime.Nower, uuider myuuid.UUIDer) {
	loader, err := checkoutflow.SharedScriptLoader(config.GatewayScriptURL, config.GatewayScriptOrigin, myhttpclient.New(nil))
	if err != nil {
		log.Fatalf("Error configuring collector script: %s", err)
	}

	api := checkoutflow.NewPaymentsClient(config.PaymentsBaseURL, myhttpclient.New(issuer.Authenticator("checkoutweb")))

	warmup.NewService(loader).RegisterEndpoints(c, router)

	service, err := checkoutweb.NewWebService(c, checkoutweb.Options{
		MerchantName: config.MerchantName,
		ThemeColor:   config.ThemeColor,
		Routes: checkoutflow.Routes{
			SuccessURL: config.SuccessURL,
			FailureURL: config.FailureURL,
		},
	}, nower, uuider, api, loader)
	if err != nil {
		log.Fatalf("Error creating checkout service: %s", err)
	}
	go service.RunEviction(c, sessionEvictionInterval)
	err = service.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout endpoints: %s", err)
	}
}

func startWebServerBlocking(config myconfig.Config, router *mux.Router) {
	handler := cors.Handler(cors.Options{
		AllowedOrigins:   config.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)

	log.Printf("Starting webserver on port %s (try %s)", config.Port, config.BaseURL)
	err := http.ListenAndServe(fmt.Sprintf(":%s", config.Port), handler)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", config.Port, err)
	}
}
