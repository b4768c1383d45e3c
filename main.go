package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kr/pretty"
	"github.com/spf13/pflag"

	"hs100/api"
	"hs100/automation"
	"hs100/config"
	"hs100/device"
	"hs100/home"
	"hs100/integration/mqtt"
	"hs100/kasa"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yml", "path to the config file")
	pflag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln("Failed to load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &kasa.Client{
		Port:    cfg.Kasa.Port,
		Timeout: cfg.Kasa.Timeout,
		Debug:   cfg.Kasa.Debug,
	}

	h := home.New()
	pretty.Logln(cfg.Kasa.Outlets)
	for name, host := range cfg.Kasa.Outlets {
		plug := kasa.NewPlug(host, kasa.WithClient(client), kasa.WithCacheTTL(cfg.Kasa.CacheTTL))
		h.AddDevice(device.NewOutlet(name, plug))
	}

	a := api.New(h)

	// MQTT
	if cfg.MQTT.Host != "" {
		m, err := mqtt.New(cfg.MQTT)
		if err != nil {
			log.Fatalln("Failed to connect to MQTT broker", err)
		}
		defer mqtt.Delete(m, automation.Topics(cfg.MQTT.Prefix)...)

		automation.RegisterAutomations(m, cfg.MQTT.Prefix, h)
	} else {
		log.Println("No MQTT host configured, skipping MQTT")
	}

	// Poll loop
	go h.Run(ctx, cfg.Kasa.PollInterval)

	srv := http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: a.Router(),
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")

		// Event streams never go idle on their own
		a.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting server on %s (PID: %d)\n", cfg.HTTP.Addr, os.Getpid())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println(err)
	}
}
