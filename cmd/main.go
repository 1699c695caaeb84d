package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/api/option"

	"subsBridge/internal/billing"
	"subsBridge/internal/billing/notify"
	"subsBridge/internal/config"
	"subsBridge/internal/services"
	"subsBridge/utils"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		errorLog.Fatal(err)
	}

	addr := flag.String("addr", cfg.Server.Address, "HTTP network address")
	flag.Parse()

	billingCfg, err := billing.LoadBillingConfig()
	if err != nil {
		errorLog.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		errorLog.Fatalf("redis ping: %v", err)
	}

	play, err := services.NewGooglePlayService(ctx, services.GooglePlayConfig{
		PackageName:        cfg.GooglePlay.PackageName,
		ServiceAccountJSON: os.Getenv("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: cfg.GooglePlay.ServiceAccountFile,
	})
	if err != nil {
		errorLog.Fatal(err)
	}

	var sender notify.Sender
	if cfg.Firebase.CredentialsFile != "" {
		fb, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		if err != nil {
			errorLog.Fatalf("firebase: %v", err)
		}
		client, err := fb.Messaging(ctx)
		if err != nil {
			errorLog.Fatalf("firebase messaging: %v", err)
		}
		sender = client
	}

	tokens, err := utils.NewManager(cfg.Bridge.SigningKey)
	if err != nil {
		errorLog.Fatalf("bridge tokens: %v", err)
	}

	logger := newStdLogger(infoLog, errorLog)
	module, err := billing.StartBilling(ctx, &billing.BillingDeps{
		RDB:        rdb,
		Publisher:  play,
		Messaging:  sender,
		FCMTopic:   cfg.Firebase.Topic,
		RegionCode: cfg.GooglePlay.RegionCode,
		Logger:     logger,
		Config:     billingCfg,
	})
	if err != nil {
		errorLog.Fatal(err)
	}
	defer module.Close()

	app := initializeApp(module, play.PackageName(), tokens, errorLog, infoLog)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "capacitor://localhost", "http://localhost"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     errorLog,
		Handler:      c.Handler(app.routes()),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: billingCfg.PurchaseTimeout + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog.Printf("shutdown: %v", err)
		}
	}()

	infoLog.Printf("Starting server on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog.Fatal(err)
	}
	infoLog.Printf("Server stopped")
}
