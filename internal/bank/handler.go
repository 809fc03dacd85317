package bank

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quizforge/internal/app/apiresp"
)

const maxUploadBytes = 8 << 20

type Importer func(ctx context.Context, bankName string, blocks []string) (int, error)

func PostgresImporter(db *sql.DB, reg *Registry) Importer {
	return func(ctx context.Context, bankName string, blocks []string) (int, error) {
		n, err := ImportPostgres(ctx, db, bankName, blocks)
		if err != nil {
			return 0, err
		}
		reg.Register(bankName, PostgresSource{DB: db, Bank: normalizeName(bankName)})
		return n, nil
	}
}

type Handler struct {
	svc      registry
	importer Importer
	logger   *zap.Logger
}

type registry interface {
	List() []Info
	Reload(ctx context.Context) ([]Info, error)
}

type reloadResult struct {
	Banks  []Info `json:"banks"`
	Failed string `json:"failed,omitempty"`
}

type importResult struct {
	Bank   string `json:"bank"`
	Blocks int    `json:"blocks"`
}

// NewHandler builds the bank endpoints. A nil importer disables uploads.
func NewHandler(svc registry, importer Importer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, importer: importer, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, h.svc.List())
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.Reload(r.Context())
	if err != nil {
		h.logger.Warn("question bank reload incomplete", zap.Error(err))
		apiresp.WriteOK(w, r, http.StatusMultiStatus, reloadResult{Banks: infos, Failed: err.Error()})
		return
	}
	h.logger.Info("question banks reloaded", zap.Int("banks", len(infos)))
	apiresp.WriteOK(w, r, http.StatusOK, reloadResult{Banks: infos})
}

func (h *Handler) ExcelTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := WriteExcelTemplate(&buf); err != nil {
		h.logger.Error("build excel template", zap.Error(err))
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="question-bank-template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		apiresp.WriteError(w, r, http.StatusServiceUnavailable, "bank import requires a database")
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "bank"))
	if name == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "bank is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "read upload failed")
		return
	}
	blocks, err := Decode(header.Filename, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			apiresp.WriteError(w, r, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	n, err := h.importer(r.Context(), name, blocks)
	if err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("import question bank", zap.String("bank", name), zap.Error(err))
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("question bank imported", zap.String("bank", name), zap.Int("blocks", n))
	apiresp.WriteOK(w, r, http.StatusCreated, importResult{Bank: normalizeName(name), Blocks: n})
}
