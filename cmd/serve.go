// =============================================================================
// JPK to PDF - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, a small web front end for people
// who would rather upload a file than use a terminal.
//
// COMMAND USAGE:
//   jpk2pdf serve [--listen :8080]
//
// ROUTES:
//   GET  /         Upload form, prefilled with the configured bank account
//   POST /         Multipart upload: xml_file, bank_account, mode
//                  single   -> Faktury.pdf
//                  separate -> faktury_<timestamp>.zip with one PDF per invoice
//   GET  /healthz  Liveness probe
//
// The bank account entered in the form is saved to the configuration file,
// so the next visit starts with it.
//
// =============================================================================

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ginjaninja78/jpk-to-pdf/internal/config"
	"github.com/ginjaninja78/jpk-to-pdf/internal/converter"
	"github.com/ginjaninja78/jpk-to-pdf/internal/logging"
	"github.com/ginjaninja78/jpk-to-pdf/internal/render"
	"github.com/ginjaninja78/jpk-to-pdf/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

// listenAddr overrides server.listen from the configuration.
var listenAddr string

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload web form",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			mainConfig.Server.Listen = listenAddr
		}
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "TCP address to listen on (default from config)")
}

// runServe starts the HTTP server and blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fonts, err := render.LoadFonts(mainConfig.Fonts.Regular, mainConfig.Fonts.Bold)
	if err != nil {
		return err
	}
	s := newServer(mainConfig, cfgFile, logger, render.NewPDFBackend(fonts))

	srv := &http.Server{
		Addr:              mainConfig.Server.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// =============================================================================
// SERVER
// =============================================================================

// server holds the state shared by all requests. cfg is guarded by mu
// because the upload handler updates and saves the bank account.
type server struct {
	mu      sync.Mutex
	cfg     *config.MainConfig
	cfgPath string

	logger  logging.Logger
	backend render.Backend
	now     func() time.Time
}

func newServer(cfg *config.MainConfig, cfgPath string, logger logging.Logger, backend render.Backend) *server {
	if logger == nil {
		logger = logging.Discard
	}
	return &server{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		backend: backend,
		now:     time.Now,
	}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Use(s.withLogging)
	return r
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

// =============================================================================
// UPLOAD FORM
// =============================================================================

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="pl">
<head><meta charset="utf-8"><title>JPK do PDF</title></head>
<body>
<h1>JPK do PDF</h1>
<form method="post" enctype="multipart/form-data">
  <p><label>Plik JPK_FA (XML): <input type="file" name="xml_file" accept=".xml" required></label></p>
  <p><label>Rachunek bankowy: <input type="text" name="bank_account" size="70" value="{{.BankAccount}}"></label></p>
  <p>
    <label><input type="radio" name="mode" value="separate"{{if eq .Mode "separate"}} checked{{end}}> Osobny PDF dla każdej faktury (ZIP)</label><br>
    <label><input type="radio" name="mode" value="single"{{if eq .Mode "single"}} checked{{end}}> Wszystkie faktury w jednym PDF</label>
  </p>
  <p><button type="submit">Generuj</button></p>
</form>
</body>
</html>
`))

type formData struct {
	BankAccount string
	Mode        string
}

func (s *server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := formData{BankAccount: s.cfg.BankAccount, Mode: s.cfg.Mode}
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("Failed to render form: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// =============================================================================
// UPLOAD HANDLER
// =============================================================================

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GenerateRunID()

	s.mu.Lock()
	limit := s.cfg.MaxUploadBytes()
	s.mu.Unlock()

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("file too large (limit %d MB)", limit>>20), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("xml_file")
	if err != nil {
		http.Error(w, "missing xml_file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	cfg, err := s.requestConfig(r.FormValue("bank_account"), r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("Upload %s: %s (%d bytes, mode %s)", requestID, header.Filename, header.Size, cfg.Mode)

	conv := converter.New(cfg, s.logger)
	conv.SetBackend(s.backend)
	batch, err := conv.Process(file)
	switch {
	case err != nil && batch == nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		var invErr *render.InvoiceError
		if errors.As(err, &invErr) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("Upload %s: %v", requestID, err)
		http.Error(w, "failed to render invoices", http.StatusInternalServerError)
		return
	}

	files := converter.OutputFiles(batch.Render)
	if len(files) == 0 {
		http.Error(w, "no invoice could be rendered", http.StatusUnprocessableEntity)
		return
	}
	s.logger.Info("Upload %s: %d invoice(s) rendered, %d skipped",
		requestID, batch.Render.Rendered(), len(batch.Render.Failures))

	if cfg.RenderMode() == render.ModeSingle {
		sendFile(w, files[0].Name, files[0].Data)
		return
	}

	var buf bytes.Buffer
	if err := utils.ZipFiles(&buf, files, s.now()); err != nil {
		s.logger.Error("Upload %s: %v", requestID, err)
		http.Error(w, "failed to package invoices", http.StatusInternalServerError)
		return
	}
	sendFile(w, utils.GenerateOutputFileName("faktury_{timestamp}", ".zip", s.now(), nil), buf.Bytes())
}

// requestConfig returns a copy of the configuration for one upload. A bank
// account that differs from the configured one is stored and saved; nothing
// else is written to the configuration file.
func (s *server) requestConfig(bankAccount, mode string) (*config.MainConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := *s.cfg
	if mode != "" {
		m, err := render.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = string(m)
	}

	bankAccount = strings.TrimSpace(bankAccount)
	if bankAccount != "" && bankAccount != s.cfg.BankAccount {
		s.cfg.BankAccount = bankAccount
		if err := config.SaveBankAccount(s.cfgPath, bankAccount); err != nil {
			s.logger.Warn("Failed to save bank account: %v", err)
		}
		cfg.BankAccount = bankAccount
	}
	return &cfg, nil
}

func sendFile(w http.ResponseWriter, name string, data []byte) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Write(data)
}
