// =============================================================================
// JPK to PDF - Rendering Engine
// =============================================================================
//
// The engine is the single entry point used by every shell (CLI, HTTP): it
// takes the seller, the normalized invoices and a render mode, and returns the
// finished documents.
//
// MODES:
//   separate : one document per invoice, named Faktura_<sanitized id>; a
//              name already used in the batch gets a _2, _3, ... suffix
//   single   : one document, one invoice after another, named Faktury
//
// FAILURES:
//   An invoice with a missing or malformed load-bearing field is skipped and
//   listed in Result.Failures. With the strict option the first failure, in
//   input order, aborts the batch instead.
//
// CONCURRENCY:
//   Layout is a pure function of one invoice plus constants. In separate mode
//   invoices are rendered in parallel, bounded by the worker limit. The fonts
//   are shared read-only.
//
// =============================================================================

package render

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/jpk-to-pdf/internal/logging"
	"github.com/ginjaninja78/jpk-to-pdf/internal/types"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// MODES AND POLICIES
// =============================================================================

// Mode selects how invoices are batched into documents.
type Mode string

const (
	ModeSeparate Mode = "separate"
	ModeSingle   Mode = "single"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSeparate, ModeSingle:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown render mode %q (want %q or %q)", s, ModeSeparate, ModeSingle)
}

// Pagination selects what happens when the line-item table reaches the
// bottom of the page.
type Pagination string

const (
	// PaginateContinue moves the remaining rows, and the totals if needed, to
	// continuation pages with a repeated mini header. Invoices that fit on one
	// page are unaffected.
	PaginateContinue Pagination = "continue"

	// PaginateNone keeps everything on one page; rows past the bottom edge are
	// drawn off-page.
	PaginateNone Pagination = "none"
)

// ParsePagination validates a pagination policy name.
func ParsePagination(s string) (Pagination, error) {
	switch Pagination(s) {
	case PaginateContinue, PaginateNone:
		return Pagination(s), nil
	}
	return "", fmt.Errorf("unknown pagination policy %q (want %q or %q)", s, PaginateContinue, PaginateNone)
}

// Document names.
const (
	SeparatePrefix = "Faktura_"
	SingleName     = "Faktury"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingField is reported when a load-bearing field is absent.
var ErrMissingField = errors.New("missing required field")

// FieldError describes the field that made an invoice unrenderable.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s (value %q): %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// InvoiceError reports one invoice that could not be rendered.
type InvoiceError struct {
	// Index is the position of the invoice in the input.
	Index int

	// InvoiceID is the invoice identifier, possibly empty.
	InvoiceID string

	Err error
}

func (e *InvoiceError) Error() string {
	return fmt.Sprintf("invoice %q (#%d): %v", e.InvoiceID, e.Index+1, e.Err)
}

func (e *InvoiceError) Unwrap() error { return e.Err }

// =============================================================================
// RESULTS
// =============================================================================

// File is one finished document.
type File struct {
	// Name is the file name including extension.
	Name string

	Data []byte

	// Pages is the number of pages in the document.
	Pages int

	// InvoiceIDs lists the invoices contained in the document, in order.
	InvoiceIDs []string
}

// Result is the outcome of a render call.
type Result struct {
	Mode     Mode
	Files    []File
	Failures []*InvoiceError
}

// Rendered returns the number of invoices that made it into a document.
func (r *Result) Rendered() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.InvoiceIDs)
	}
	return n
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine renders invoices into documents produced by a Backend.
type Engine struct {
	backend    Backend
	pagination Pagination
	workers    int
	strict     bool
	log        logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPagination sets the overflow policy. The default is PaginateContinue.
func WithPagination(p Pagination) Option {
	return func(e *Engine) { e.pagination = p }
}

// WithWorkers bounds parallel rendering in separate mode. Values below one
// mean sequential rendering.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = max(n, 1) }
}

// WithStrict makes the first failing invoice abort the batch.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the logger used for per-invoice failures.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:    backend,
		pagination: PaginateContinue,
		workers:    1,
		log:        logging.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render lays out the invoices for the given seller according to mode.
//
// The returned error is non-nil when the backend fails, when the mode is
// unknown, or, in strict mode, when any invoice fails. Otherwise per-invoice
// failures are listed in Result.Failures.
func (e *Engine) Render(seller types.Seller, invoices []types.Invoice, mode Mode) (*Result, error) {
	switch mode {
	case ModeSeparate:
		return e.renderSeparate(seller, invoices)
	case ModeSingle:
		return e.renderSingle(seller, invoices)
	}
	return nil, fmt.Errorf("unknown render mode %q", mode)
}

// FileName returns the document name used for an invoice in separate mode.
func (e *Engine) FileName(inv types.Invoice) string {
	return SeparatePrefix + types.SanitizeID(inv.ID) + e.backend.Extension()
}

// renderSeparate produces one document per invoice.
func (e *Engine) renderSeparate(seller types.Seller, invoices []types.Invoice) (*Result, error) {
	files := make([]*File, len(invoices))
	invErrs := make([]*InvoiceError, len(invoices))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range invoices {
		g.Go(func() error {
			sh, err := prepare(invoices[i])
			if err != nil {
				invErrs[i] = &InvoiceError{Index: i, InvoiceID: invoices[i].ID, Err: err}
				return nil
			}
			doc, err := e.backend.NewDocument()
			if err != nil {
				return fmt.Errorf("failed to create document: %w", err)
			}
			pages := drawInvoice(doc, seller, sh, e.pagination)
			data, err := doc.Bytes()
			if err != nil {
				return fmt.Errorf("failed to finalize document for invoice %q: %w", invoices[i].ID, err)
			}
			files[i] = &File{
				Name:       e.FileName(invoices[i]),
				Data:       data,
				Pages:      pages,
				InvoiceIDs: []string{invoices[i].ID},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Mode: ModeSeparate}
	names := make(map[string]bool, len(invoices))
	for i := range invoices {
		if invErrs[i] != nil {
			if e.strict {
				return nil, invErrs[i]
			}
			e.log.Warn("Skipping %v", invErrs[i])
			result.Failures = append(result.Failures, invErrs[i])
			continue
		}
		f := *files[i]
		if name := uniqueName(f.Name, names); name != f.Name {
			e.log.Warn("Invoice %q (#%d) saved as %s: %s is already taken", invoices[i].ID, i+1, name, f.Name)
			f.Name = name
		}
		names[f.Name] = true
		result.Files = append(result.Files, f)
	}
	return result, nil
}

// uniqueName returns name, or name with a _2, _3, ... suffix before the
// extension when it is already in taken.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}

// renderSingle produces one document holding every renderable invoice in
// input order, each starting on a fresh page.
func (e *Engine) renderSingle(seller types.Seller, invoices []types.Invoice) (*Result, error) {
	doc, err := e.backend.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	result := &Result{Mode: ModeSingle}
	var ids []string
	for i, inv := range invoices {
		sh, err := prepare(inv)
		if err != nil {
			invErr := &InvoiceError{Index: i, InvoiceID: inv.ID, Err: err}
			if e.strict {
				return nil, invErr
			}
			e.log.Warn("Skipping %v", invErr)
			result.Failures = append(result.Failures, invErr)
			continue
		}
		drawInvoice(doc, seller, sh, e.pagination)
		ids = append(ids, inv.ID)
	}

	if doc.PageCount() == 0 {
		return result, nil
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}
	result.Files = []File{{
		Name:       SingleName + e.backend.Extension(),
		Data:       data,
		Pages:      doc.PageCount(),
		InvoiceIDs: ids,
	}}
	return result, nil
}
