package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/api"
	"granel_dashboard/internal/config"
	"granel_dashboard/internal/dashboard"
	"granel_dashboard/internal/gviz"
	"granel_dashboard/internal/notifications"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/sheetapi"
	"granel_dashboard/internal/viewed"
	"granel_dashboard/internal/webhook"
)

func main() {
	setupEnvironment()

	cfg, err := config.Load(os.Getenv("GRANEL_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := viewed.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open viewed-set store")
	}

	transfers, incidents, whatsapp := buildDashboards(ctx, cfg, store)

	// Initial loads. Failures stay local to each dashboard's error state;
	// siblings keep working.
	transfers.Refresh(ctx)
	incidents.Refresh(ctx)
	whatsapp.Refresh(ctx)

	interval := time.Duration(cfg.RefreshSeconds) * time.Second
	log.Info().Dur("interval", interval).Msg("Starting silent auto-refresh")
	go transfers.Run(ctx, interval)
	go incidents.Run(ctx, interval)
	go whatsapp.Run(ctx, interval)

	srv := api.NewServer(transfers, incidents, whatsapp)
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Info().Str("addr", addr).Msg("Starting dashboard API")

	go func() {
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown did not complete cleanly")
	}
}

func buildDashboards(ctx context.Context, cfg *config.Config, store *viewed.Store) (*dashboard.TransferDashboard, *dashboard.IncidentDashboard, *dashboard.WhatsAppDashboard) {
	gvizClient := gviz.NewClient()

	var sheetClient *sheetapi.Client
	if cfg.CredentialsFile != "" {
		var err error
		sheetClient, err = sheetapi.NewClient(ctx, cfg.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create sheets client")
		}
		log.Info().Msg("Using authenticated Sheets transport")
	}

	writer := statusWriter(cfg, sheetClient)

	var notifier dashboard.Notifier
	if cfg.Ntfy.Enabled {
		notifier = notifications.NewClient(cfg.Ntfy.URL, cfg.Ntfy.Topic, true)
		log.Info().Str("topic", cfg.Ntfy.Topic).Msg("Incident notifications enabled")
	}

	var tableFor fetchTableFunc
	if sheetClient != nil {
		tableFor = apiTableFetcher(sheetClient, cfg)
	} else {
		tableFor = gvizTableFetcher(gvizClient, cfg)
	}

	transfers := dashboard.NewTransferDashboard(transferFetcher(tableFor, cfg), store)
	incidents := dashboard.NewIncidentDashboard(incidentFetcher(tableFor, cfg), store, writer, notifier)
	whatsapp := dashboard.NewWhatsAppDashboard(messageFetcher(tableFor, cfg))
	return transfers, incidents, whatsapp
}

// fetchTableFunc fetches one sheet's table; key is a gid for the gviz
// transport and a sheet name for the authenticated one.
type fetchTableFunc func(ctx context.Context, gid, sheetName string) (*gviz.Table, error)

func gvizTableFetcher(c *gviz.Client, cfg *config.Config) fetchTableFunc {
	return func(ctx context.Context, gid, _ string) (*gviz.Table, error) {
		return c.FetchTable(ctx, cfg.SpreadsheetID, gid)
	}
}

func apiTableFetcher(c *sheetapi.Client, cfg *config.Config) fetchTableFunc {
	return func(ctx context.Context, _, sheetName string) (*gviz.Table, error) {
		// A2 skips the header row so indices line up with the gviz rows.
		values, err := c.ReadRows(ctx, cfg.SpreadsheetID, sheetName+"!A2:Z")
		if err != nil {
			return nil, err
		}
		return gviz.TableFromValues(values), nil
	}
}

// statusWriter picks the status write path: direct Sheets API writes when
// authenticated, otherwise the Apps Script webhook.
func statusWriter(cfg *config.Config, sheetClient *sheetapi.Client) dashboard.StatusWriter {
	if sheetClient != nil {
		return &apiStatusWriter{
			client:        sheetClient,
			spreadsheetID: cfg.SpreadsheetID,
			sheetName:     cfg.IncidentsSheetName,
		}
	}
	return webhook.NewClient(cfg.StatusWebhookURL)
}

// apiStatusWriter adapts the Sheets client's error-returning write to the
// boolean transport-outcome contract the overlay expects.
type apiStatusWriter struct {
	client        *sheetapi.Client
	spreadsheetID string
	sheetName     string
}

func (w *apiStatusWriter) PostStatus(ctx context.Context, rowIndex int, status string) bool {
	if err := w.client.WriteStatus(ctx, w.spreadsheetID, w.sheetName, rowIndex, status); err != nil {
		log.Error().Err(err).Int("row_index", rowIndex).Msg("Failed to write status cell")
		return false
	}
	return true
}

func transferFetcher(tableFor fetchTableFunc, cfg *config.Config) func(ctx context.Context) ([]records.TransferReceipt, error) {
	if cfg.SpreadsheetID == "" || cfg.TransfersGID == "" {
		return nil
	}
	return func(ctx context.Context) ([]records.TransferReceipt, error) {
		table, err := tableFor(ctx, cfg.TransfersGID, cfg.TransfersSheetName)
		if err != nil {
			return nil, err
		}
		return records.MapTransfers(table, records.DefaultTransferSchema), nil
	}
}

func incidentFetcher(tableFor fetchTableFunc, cfg *config.Config) func(ctx context.Context) ([]records.Incident, error) {
	if cfg.SpreadsheetID == "" || cfg.IncidentsGID == "" {
		return nil
	}
	return func(ctx context.Context) ([]records.Incident, error) {
		table, err := tableFor(ctx, cfg.IncidentsGID, cfg.IncidentsSheetName)
		if err != nil {
			return nil, err
		}
		return records.MapIncidents(table, records.DefaultIncidentSchema), nil
	}
}

func messageFetcher(tableFor fetchTableFunc, cfg *config.Config) func(ctx context.Context) ([]records.WhatsAppMessage, error) {
	if cfg.SpreadsheetID == "" || cfg.MessagesGID == "" {
		return nil
	}
	return func(ctx context.Context) ([]records.WhatsAppMessage, error) {
		table, err := tableFor(ctx, cfg.MessagesGID, cfg.MessagesSheetName)
		if err != nil {
			return nil, err
		}
		return records.MapMessages(table, records.DefaultMessageSchema), nil
	}
}
