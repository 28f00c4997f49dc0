// Package reporter renders audit runs as markdown, PDF, JSON, SARIF, CSV and
// terminal text.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/runner"
)

const fileTimestamp = "20060102_150405"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Options controls which report files are written.
type Options struct {
	OutputDir           string
	JSON                bool
	SARIF               bool
	PDF                 bool
	PandocBinary        string
	MaxFindingsPerGroup int
	Version             string
	// Adapters describe findings in the markdown report; nil keeps the
	// generic finding line.
	Adapters *adapters.Set
}

// Writer persists the report files of an audit run.
type Writer struct {
	opts   Options
	exec   runner.ExecFunc
	logger *zap.Logger
}

// NewWriter creates a Writer. execFn runs pandoc; nil uses runner.OSExec.
func NewWriter(opts Options, execFn runner.ExecFunc, logger *zap.Logger) *Writer {
	if execFn == nil {
		execFn = runner.OSExec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PandocBinary == "" {
		opts.PandocBinary = "pandoc"
	}
	return &Writer{opts: opts, exec: execFn, logger: logger}
}

// BaseName returns "<repo>_audit_<YYYYmmdd_HHMMSS>" for run.
func BaseName(run *models.AuditRun) string {
	name := unsafeName.ReplaceAllString(run.Context.Repository.Name, "_")
	if name == "" {
		name = "repository"
	}
	return name + "_audit_" + run.Timestamp.Format(fileTimestamp)
}

// Write writes the markdown report and any extra formats. Failing to write
// the markdown is an error; a PDF failure is only logged.
func (w *Writer) Write(ctx context.Context, run *models.AuditRun) (*models.ReportDescriptor, error) {
	if err := os.MkdirAll(w.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Join(w.opts.OutputDir, BaseName(run))
	desc := &models.ReportDescriptor{
		FilePath:    base + ".md",
		GeneratedAt: run.Timestamp,
	}

	if err := writeFile(desc.FilePath, func(out io.Writer) error {
		return NewMarkdownReporter(out, w.opts.MaxFindingsPerGroup).WithAdapters(w.opts.Adapters).Generate(run)
	}); err != nil {
		return nil, fmt.Errorf("write markdown report: %w", err)
	}
	w.logger.Info("report written", zap.String("path", desc.FilePath))

	if w.opts.JSON {
		path := base + ".json"
		if err := writeFile(path, func(out io.Writer) error {
			return NewJSONReporter(out, true).Generate(run)
		}); err != nil {
			return nil, fmt.Errorf("write json report: %w", err)
		}
		desc.JSONPath = path
	}

	if w.opts.SARIF {
		path := base + ".sarif"
		if err := writeFile(path, func(out io.Writer) error {
			return WriteSARIF(out, []*models.AuditRun{run}, w.opts.Version)
		}); err != nil {
			return nil, fmt.Errorf("write sarif report: %w", err)
		}
		desc.SARIFPath = path
	}

	if w.opts.PDF {
		pdf := base + ".pdf"
		if err := w.exportPDF(ctx, desc.FilePath, pdf); err != nil {
			w.logger.Warn("PDF generation failed; ensure pandoc is installed",
				zap.String("pandoc", w.opts.PandocBinary),
				zap.Error(err))
		} else {
			desc.PDFPath = pdf
			w.logger.Info("PDF report generated", zap.String("path", pdf))
		}
	}

	return desc, nil
}

func (w *Writer) exportPDF(ctx context.Context, mdPath, pdfPath string) error {
	res, err := w.exec(ctx, filepath.Dir(mdPath), w.opts.PandocBinary,
		mdPath, "-o", pdfPath, "--standalone")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pandoc exited with code %d: %s",
			res.ExitCode, adapters.Excerpt(strings.TrimSpace(string(res.Stderr)), 500))
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f)
}
