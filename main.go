package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"billy/api"
	"billy/app"
	"billy/audio"
	"billy/config"
	"billy/controller"
	"billy/database"
	"billy/gateway"
	"billy/handlers"
	"billy/helpers"
	"billy/player"
	"billy/sentry"
	"billy/soundcloud"
	"billy/watcher"
	"billy/youtube"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("No .env file loaded")
	}
	config.NewConfig()
	setupLogging(config.Config.Options.LogLevel)
	sentry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		sentry.ReportFatal(err)
		log.WithError(err).Fatal("billy stopped")
	}
}

func setupLogging(level string) {
	log.SetFormatter(&nested.Formatter{
		FieldsOrder:     []string{"module", "function"},
		TimestampFormat: time.RFC3339,
	})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
	if parsed < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func sinks(output string) audio.SinkFactory {
	if output == config.OutputDiscard {
		return audio.DiscardSink()
	}
	return audio.FFPlaySink("ffplay")
}

func run(ctx context.Context) error {
	cfg := config.Config
	logger := log.WithFields(log.Fields{"module": "main"})

	db, err := database.New(cfg.Options.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := audio.NewLoader(cfg.Audio.LoadTimeout)
	output := sinks(cfg.Audio.Output)
	resolve := func(ctx context.Context, pageURL string) (string, error) {
		return helpers.ResolveStreamURL(ctx, pageURL, cfg.Audio.LoadTimeout)
	}

	var youtubeSource audio.Source = audio.NewResolvingSource(resolve, loader)
	if cfg.Youtube.IsEnabled() {
		client, err := youtube.NewClient(ctx, cfg.Youtube.APIKey)
		if err != nil {
			logger.WithError(err).Warn("YouTube metadata lookups disabled")
		} else {
			youtubeSource = client.Source(youtubeSource)
		}
	}
	soundcloudSource := audio.NewResolvingSource(soundcloud.StreamResolver(cfg.Soundcloud.ClientID, resolve), loader)

	element := audio.NewElement(loader, output)
	defer element.Close()
	youtubeWidget := youtube.NewWidget(youtubeSource, output)
	defer youtubeWidget.Close()
	soundcloudWidget := soundcloud.NewWidget(soundcloudSource, output)
	defer soundcloudWidget.Close()

	adapter := player.NewAdapter(cfg.Options.DefaultVolume,
		player.NewLocalAudio(element),
		player.NewYouTube(youtubeWidget),
		player.NewSoundCloud(soundcloudWidget),
	)
	playlist := controller.NewController(adapter)
	playlist.SetRepeat(cfg.Options.Repeat)

	client := api.NewClient(cfg.Billy.APIBase, cfg.Billy.HTTPTimeout)
	gw := gateway.New(client, db, cfg.Options.CookieName(), cfg.Billy.Token)
	defer gw.Wait()

	application := app.New(app.Options{
		Player:        adapter,
		Controller:    playlist,
		Gateway:       gw,
		Catalog:       client,
		History:       db,
		AlertCooldown: app.AlertCooldown,
	})
	defer application.Close()
	gw.OnError = application.RemoteFailed

	server := &http.Server{
		Addr:              ":" + cfg.Options.Port,
		Handler:           handlers.NewManager(application, adapter, playlist).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("port", cfg.Options.Port).Info("Starting control server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := application.Start(ctx)
		if errors.Is(err, gateway.ErrSessionNotFound) {
			return err
		}
		if err != nil {
			logger.WithError(err).Warn("Started without playlists from the server")
		}
		return nil
	})
	if cfg.Options.ImportEnabled() {
		w := watcher.New(cfg.Options.ImportDir, application, watcher.DefaultDebounce)
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
