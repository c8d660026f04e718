package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/app"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/archive"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/brief"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/cache"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/config"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/discord"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/httpapi"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/logging"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/search"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/sheets"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/store"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/sweep"
	"github.com/ChoppaTheMegalodon/MissionMonitor/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("configuration invalid")
	}
	log := logging.New(cfg.LogLevel)

	ctx := context.Background()

	st := store.NewFileStore(cfg.DataDir, log)

	var gateway *sheets.Gateway
	if cfg.SheetsConfigured() {
		values, err := sheets.NewGoogleValues(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID)
		if err != nil {
			log.WithError(err).Fatal("sheets client init failed")
		}
		gateway = sheets.NewGateway(values, st, log)
		log.WithField("spreadsheet", cfg.Sheets.SpreadsheetID).Info("sheets sync enabled")
	} else {
		log.Info("sheets sync not configured, running without spreadsheet mirror")
	}

	var processed app.ProcessedCache
	if cfg.RedisConfigured() {
		pc, err := cache.New(cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer pc.Close()
		processed = pc
		log.Info("processed-message cache enabled")
	}

	service := app.New(st, gateway, processed, log)

	var searcher *search.Service
	if cfg.SearchConfigured() {
		searcher = search.New(cfg.Search.URL, cfg.Search.APIKey, log)
		defer searcher.Close()
	}

	var briefs *brief.Service
	if cfg.BriefConfigured() {
		briefs = brief.New(cfg.Brief.APIURL, cfg.Brief.APIKey, cfg.Brief.Model, searcher, log)
		log.Info("mission brief generation enabled")
	}

	var announcer discord.Announcer
	var tgBot *telegram.Bot
	if cfg.TelegramConfigured() {
		tgBot, err = telegram.New(cfg.Telegram.Token, cfg.Telegram.ChannelID, service, log)
		if err != nil {
			log.WithError(err).Fatal("telegram init failed")
		}
		announcer = tgBot
	}

	bot, err := discord.New(cfg.Discord.Token, discord.Config{
		GuildID:             cfg.Discord.GuildID,
		SubmissionChannelID: cfg.Discord.SubmissionChannelID,
		JudgeRoleID:         cfg.Discord.JudgeRoleID,
		DefaultMissionHours: cfg.Discord.DefaultMissionHours,
	}, service, briefs, announcer, log)
	if err != nil {
		log.WithError(err).Fatal("discord init failed")
	}
	if err := bot.Start(); err != nil {
		log.WithError(err).Fatal("discord connect failed")
	}
	defer bot.Close()

	if tgBot != nil {
		tgBot.Start()
	}

	var archiver sweep.Archiver
	if cfg.ArchiveConfigured() {
		a, err := archive.New(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.UseSSL, log)
		if err != nil {
			log.WithError(err).Fatal("archive init failed")
		}
		archiver = a
		log.WithField("bucket", cfg.Archive.Bucket).Info("export archive enabled")
	}

	sweeper := sweep.New(st, gateway, bot, archiver, cfg.Sweep.Interval, log)
	sweeper.Start()

	var refIndexer httpapi.ReferenceIndexer
	if searcher != nil {
		refIndexer = searcher
	}
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.Handler(st, refIndexer),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	sweeper.Stop()
	if tgBot != nil {
		tgBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
	log.Info("stopped")
}
