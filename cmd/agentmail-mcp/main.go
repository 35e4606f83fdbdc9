// Command agentmail-mcp runs the multi-agent coordination bus's MCP server.
//
// It speaks JSON-RPC 2.0 (the MCP protocol) over stdio by default, or over
// Streamable HTTP when configured, and persists every project, agent,
// message, contact link, and file reservation to a local relational store
// mirrored into a per-project git archive.
//
// Optional environment variables (see internal/config for the full list):
//
//	AGENTMAIL_CONFIG                    - path to a TOML config file
//	AGENTMAIL_STORE_PATH                - SQLite database path
//	AGENTMAIL_TRANSPORT                 - "stdio" (default) or "http"
//	AGENTMAIL_LOG_LEVEL                 - debug, info, warn, error (default: info)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/archiveset"
	"github.com/agentmail/agentmail-mcp/internal/config"
	"github.com/agentmail/agentmail-mcp/internal/content"
	"github.com/agentmail/agentmail-mcp/internal/format"
	agentident "github.com/agentmail/agentmail-mcp/internal/identity"
	"github.com/agentmail/agentmail-mcp/internal/mcp"
	"github.com/agentmail/agentmail-mcp/internal/messaging"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/resources"
	"github.com/agentmail/agentmail-mcp/internal/scheduler"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/agentmail/agentmail-mcp/internal/tools/contact"
	"github.com/agentmail/agentmail-mcp/internal/tools/filereservation"
	"github.com/agentmail/agentmail-mcp/internal/tools/guardctl"
	"github.com/agentmail/agentmail-mcp/internal/tools/identity"
	"github.com/agentmail/agentmail-mcp/internal/tools/infra"
	"github.com/agentmail/agentmail-mcp/internal/tools/macros"
	"github.com/agentmail/agentmail-mcp/internal/tools/mail"
	"github.com/agentmail/agentmail-mcp/internal/tools/productbus"
	"github.com/agentmail/agentmail-mcp/internal/tools/searchtools"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentmail-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to agentmail.toml (overrides AGENTMAIL_CONFIG and the default search path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}
	logger.Info("starting agentmail-mcp", "version", version, "transport", cfg.Transport.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		Path:          cfg.Store.Path,
		MaxOpenConns:  cfg.Store.MaxOpenConns,
		BusyTimeoutMS: cfg.Store.BusyTimeoutMS,
		SlowQueryMS:   cfg.Store.SlowQueryMS,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	archives := archiveset.New(cfg.Archive.StorageRoot)

	staleAfter := time.Duration(cfg.Reservations.StaleInactivitySeconds) * time.Second
	linkTTL := time.Duration(cfg.Contacts.LinkTTLSeconds) * time.Second
	lockTimeout := time.Duration(cfg.Archive.LockTimeoutSeconds) * time.Second

	reservationSvc := reservations.NewService(st)
	reservationSvc.Archives = archives
	reservationSvc.LockTimeout = lockTimeout
	reservationSvc.MinTTL = time.Duration(cfg.Reservations.MinTTLSeconds) * time.Second
	reservationSvc.StaleAfter = staleAfter
	reservationSvc.Logger = logger

	composer := &messaging.Composer{
		Store:        st,
		Resolver:     &messaging.StoreResolver{Store: st},
		Reservations: reservationSvc,
		Transcoder:   nil, // image transcoding is an external collaborator; attachments are stored as-is or externalized untouched
		LockTimeout:  lockTimeout,
		LinkTTL:      linkTTL,
		AutoAccept:   cfg.Contacts.HandshakeAutoAccept,
	}

	registry := mcp.NewRegistry()

	registerAgent := identity.NewRegisterAgent(st, agentident.ModeCoerce)
	registerAgent.DefaultContactPolicy = store.ContactPolicy(cfg.Contacts.DefaultPolicy)
	registerAgent.Archives = archives
	registerAgent.LockTimeout = lockTimeout
	registerAgent.Logger = logger
	registry.Register(infra.NewHealthCheck(cfg.Server.Name, version, time.Now().UTC()))
	registry.Register(infra.NewEnsureProject(st, archives))
	registry.Register(registerAgent)
	registry.Register(identity.NewWhois(st))
	registry.Register(identity.NewDeregisterAgent(st))
	registry.Register(identity.NewListWindowIdentities(st))
	registry.Register(identity.NewRenameWindow(st))
	registry.Register(identity.NewExpireWindow(st))
	registry.Register(identity.NewSetContactPolicy(st))

	registry.Register(mail.NewSendMessage(st, composer, archives))
	registry.Register(mail.NewReplyMessage(st, composer, archives))
	registry.Register(mail.NewFetchInbox(st))
	registry.Register(mail.NewFetchTopic(st))
	registry.Register(mail.NewMarkMessageRead(st))
	registry.Register(mail.NewAcknowledgeMessage(st))
	registry.Register(mail.NewPurgeOldMessages(st))

	registry.Register(contact.NewRequestContact(st))
	registry.Register(contact.NewRespondContact(st, linkTTL))
	registry.Register(contact.NewListContacts(st))

	registry.Register(filereservation.NewFileReservationPaths(reservationSvc, st))
	registry.Register(filereservation.NewRenewFileReservations(reservationSvc))
	registry.Register(filereservation.NewReleaseFileReservations(reservationSvc))
	registry.Register(filereservation.NewForceReleaseFileReservation(reservationSvc, st, staleAfter))

	registry.Register(guardctl.NewInstallPrecommitGuard(st, archives))
	registry.Register(guardctl.NewUninstallPrecommitGuard())

	registry.Register(searchtools.NewSearchMessages(st))
	registry.Register(searchtools.NewSummarizeThread(st))
	registry.Register(searchtools.NewSummarizeRecent(st))
	registry.Register(searchtools.NewFetchSummary(st))

	registry.Register(productbus.NewEnsureProduct(st, cfg.MCP.ProductBusEnabled))
	registry.Register(productbus.NewLinkProductProject(st, cfg.MCP.ProductBusEnabled))
	registry.Register(productbus.NewSuggestSiblingProject(st, cfg.MCP.ProductBusEnabled))
	registry.Register(productbus.NewSetSiblingStatus(st, cfg.MCP.ProductBusEnabled))

	identityResolver := macros.NewAgentIdentityResolver(registerAgent.ResolveName)
	registry.Register(macros.NewMacroStartSession(st, archives, agentident.ModeCoerce, identityResolver))
	registry.Register(macros.NewMacroPrepareThread(st, linkTTL))
	registry.Register(macros.NewMacroFileReservationCycle(st, reservationSvc))
	registry.Register(macros.NewMacroContactHandshake(st, linkTTL))

	registry.Filter(mcp.Profile(cfg.MCP.ToolProfile), parseClusters(cfg.MCP.Capabilities))

	registry.RegisterPrompt(&content.GuidePrompt{})

	registry.RegisterResource(resources.NewConfigEnvironment(cfg))
	registry.RegisterResource(resources.NewProjects(st))
	registry.RegisterResourceTemplate(resources.NewProject(st))
	registry.RegisterResourceTemplate(resources.NewAgents(st))
	registry.RegisterResourceTemplate(resources.NewMessage(st))
	registry.RegisterResourceTemplate(resources.NewThread(st))
	registry.RegisterResourceTemplate(resources.NewInbox(st))
	registry.RegisterResourceTemplate(resources.NewOutbox(st))
	registry.RegisterResourceTemplate(resources.NewMailbox(st))
	registry.RegisterResourceTemplate(resources.NewFileReservations(st))
	registry.RegisterResourceTemplate(resources.NewUrgentUnread(st))
	registry.RegisterResourceTemplate(resources.NewAckRequired(st))
	registry.RegisterResourceTemplate(resources.NewAcksStale(st))
	registry.RegisterResourceTemplate(resources.NewAckOverdue(st))
	registry.RegisterResource(resources.NewToolingDirectory(registry))
	registry.RegisterResource(resources.NewToolingSchemas(registry))
	registry.RegisterResource(resources.NewToolingLocks(st, archives))
	registry.RegisterResourceTemplate(resources.NewCapabilities(st, cfg))
	registry.RegisterResourceTemplate(resources.NewIdentity(st, cfg))
	registry.RegisterResourceTemplate(resources.NewProduct(st, cfg.MCP.ProductBusEnabled))

	defaultFormat, err := format.Parse(cfg.MCP.DefaultFormat)
	if err != nil {
		defaultFormat = format.FormatJSON
	}

	server := mcp.NewServer(registry, mcp.ServerInfo{Name: cfg.Server.Name, Version: version}, logger)
	server.SetDefaultFormat(defaultFormat)

	registry.RegisterResource(mcp.NewMetricsResource(server.Metrics()))
	registry.RegisterResourceTemplate(resources.NewRecentActivity(server.Activity()))

	stopJanitor := startJanitor(ctx, cfg, reservationSvc, st, logger)
	defer stopJanitor()

	if cfg.Transport.Mode == "http" {
		httpServer := mcp.NewHTTPServer(server, cfg.Transport.CORSOrigins, cfg.Transport.SharedToken, logger)
		addr := cfg.Transport.Host + ":" + cfg.Transport.Port
		logger.Info("listening", "addr", addr)

		srv := &http.Server{Addr: addr, Handler: httpServer.Handler()}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	return server.Run(ctx)
}

// startJanitor wires the periodic reservation sweep and digest-cache GC
// jobs, preferring the cron scheduler for the sweep when a wall-clock spec
// is configured. It returns a stop function safe to call even if the
// janitor is disabled.
func startJanitor(ctx context.Context, cfg *config.Config, svc *reservations.Service, st *store.Store, logger *slog.Logger) func() {
	if !cfg.Janitor.Enabled {
		return func() {}
	}

	interval := time.Duration(cfg.Janitor.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	var cronSched *scheduler.CronScheduler
	plainSched := scheduler.NewScheduler(logger)

	sweepJob := &scheduler.ReservationSweepJob{Reservations: svc, Logger: logger}
	if cfg.Janitor.ReservationSweepCron != "" {
		cronSched = scheduler.NewCronScheduler(logger)
		if err := cronSched.AddJob(cfg.Janitor.ReservationSweepCron, sweepJob); err != nil {
			logger.Error("invalid reservation_sweep_cron, falling back to interval scheduler", "error", err)
			cronSched = nil
			plainSched.AddJob(sweepJob, interval)
		}
	} else {
		plainSched.AddJob(sweepJob, interval)
	}

	if !cfg.Janitor.ReservationSweepOnly {
		tolerance := time.Duration(cfg.Search.SummaryCacheToleranceSeconds) * time.Second
		plainSched.AddJob(&scheduler.DigestCacheGCJob{Store: st, Retention: tolerance, Logger: logger}, interval)
	}

	plainSched.Start(ctx)
	if cronSched != nil {
		cronSched.Start()
	}

	return func() {
		plainSched.Stop()
		if cronSched != nil {
			cronSched.Stop()
		}
	}
}

func parseClusters(raw []string) []mcp.Cluster {
	if len(raw) == 0 {
		return nil
	}
	out := make([]mcp.Cluster, 0, len(raw))
	for _, c := range raw {
		out = append(out, mcp.Cluster(c))
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
