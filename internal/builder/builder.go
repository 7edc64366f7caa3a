package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"quire/internal/config"
	"quire/internal/edition"
	"quire/internal/fileutil"
	"quire/internal/logging"
	"quire/internal/services"
)

const (
	coverFileName = "cover.jpg"
	cssFileName   = "epub_styles.css"
	stderrTail    = 2048
)

// Options tunes a single build.
type Options struct {
	// Force rebuilds even when a fresh artifact exists.
	Force bool
}

// Option configures the builder.
type Option func(*Builder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(b *Builder) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithLookPath overrides converter discovery.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(b *Builder) {
		if fn != nil {
			b.lookPath = fn
		}
	}
}

// Builder converts content sets into EPUB artifacts.
type Builder struct {
	cfg       *config.Config
	workspace edition.Workspace
	exec      Executor
	lookPath  func(string) (string, error)
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Builder.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		cfg:       cfg,
		workspace: edition.NewWorkspace(cfg),
		exec:      commandExecutor{},
		lookPath:  exec.LookPath,
		logger:    logging.NewComponentLogger(logger, "builder"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the EPUB for ed from its content set, reusing a fresh
// artifact unless opts.Force is set.
func (b *Builder) Build(ctx context.Context, ed edition.Edition, opts Options) (*edition.Artifact, error) {
	logger := logging.WithContext(ctx, b.logger)

	set, err := edition.LoadContentSet(b.workspace.ContentDir(ed.ID))
	if err != nil {
		return nil, buildError("load content", "", err)
	}
	title := firstNonEmpty(set.Title, ed.Title, edition.TitleFromSlug(ed.ID))
	author := firstNonEmpty(set.Author, b.cfg.Book.Author)
	finalPath := b.workspace.ArtifactPath(ed.ID)
	artifact := &edition.Artifact{
		EditionID:      ed.ID,
		Path:           finalPath,
		AttachmentName: edition.AttachmentName(title, author),
	}

	if !opts.Force {
		if modTime, ok := b.reusable(set, finalPath); ok {
			artifact.ModTime = modTime
			artifact.Reused = true
			logger.Info("reusing fresh e-book",
				logging.String("path", finalPath),
				logging.String(logging.FieldEventType, "artifact_reused"),
			)
			return artifact, nil
		}
	}

	binary, err := b.lookPath(b.cfg.Converter.Binary)
	if err != nil {
		return nil, buildError("locate converter", b.cfg.Converter.Binary+" not found on PATH", err)
	}

	buildDir, err := os.MkdirTemp("", "quire-build-"+ed.ID+"-")
	if err != nil {
		return nil, buildError("create build dir", "", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(buildDir); rmErr != nil {
			logger.Warn("build dir cleanup failed", logging.String("dir", buildDir), logging.Error(rmErr))
		}
	}()

	chapters, err := b.stage(set, buildDir, logger)
	if err != nil {
		return nil, buildError("stage content", "", err)
	}
	coverName := b.stageCover(set, buildDir, logger)
	cssName := b.stageCSS(buildDir, logger)

	meta := bookMetadata{
		Title:      title,
		Author:     author,
		Lang:       b.cfg.Book.Language,
		Date:       b.now().Format("2006-01-02"),
		Publisher:  author,
		Identifier: ed.ID,
		CoverImage: coverName,
	}
	if err := writeBookMetadata(buildDir, meta); err != nil {
		return nil, buildError("write metadata", "", err)
	}

	if err := os.MkdirAll(b.workspace.ArtifactRoot, 0o755); err != nil {
		return nil, buildError("create artifact dir", "", err)
	}
	tmp, err := os.CreateTemp(b.workspace.ArtifactRoot, "."+ed.ID+".*.epub")
	if err != nil {
		return nil, buildError("create temp artifact", "", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmpPath)
		}
	}()

	args := converterArgs(buildDir, tmpPath, cssName, coverName, b.cfg.Converter.ExtraArgs, chapters)
	runCtx := ctx
	if timeout := b.cfg.ConverterTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("running converter",
		logging.String("binary", binary),
		logging.Int("chapters", len(chapters)),
		logging.String(logging.FieldEventType, "converter_started"),
	)
	started := b.now()
	stderr, err := b.exec.Run(runCtx, buildDir, binary, args)
	if err != nil {
		return nil, buildError("run converter", tail(stderr, stderrTail), err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, buildError("inspect output", "", err)
	}
	if info.Size() == 0 {
		return nil, buildError("inspect output", "converter produced an empty file", nil)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, buildError("publish artifact", "", err)
	}
	published = true

	if final, err := os.Stat(finalPath); err == nil {
		artifact.ModTime = final.ModTime()
	}
	logger.Info("e-book built",
		logging.String("path", finalPath),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", b.now().Sub(started)),
		logging.String(logging.FieldEventType, "artifact_built"),
	)
	return artifact, nil
}

func (b *Builder) reusable(set *edition.ContentSet, artifactPath string) (time.Time, bool) {
	info, err := os.Stat(artifactPath)
	if err != nil || info.Size() == 0 {
		return time.Time{}, false
	}
	metaInfo, err := os.Stat(filepath.Join(set.Dir, edition.MetadataFile))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), Fresh(info.ModTime(), set.ScrapedAt, metaInfo.ModTime())
}

// stage copies chapters and images into dir, converting WebP images to JPEG
// and rewriting chapter references to match. It returns chapter names in
// source order.
func (b *Builder) stage(set *edition.ContentSet, dir string, logger *slog.Logger) ([]string, error) {
	renames := make(map[string]string)
	for _, name := range set.Images {
		if err := fileutil.CopyFile(filepath.Join(set.Dir, name), filepath.Join(dir, name)); err != nil {
			logger.Warn("image missing from content set", logging.String("image", name), logging.Error(err))
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".webp") {
			continue
		}
		converted, err := convertWebP(dir, name, b.cfg.Book.ImageQuality)
		if err != nil {
			logger.Warn("webp conversion failed; keeping original",
				logging.String("image", name),
				logging.Error(err),
			)
			continue
		}
		renames[name] = converted
	}

	chapters := make([]string, 0, len(set.Articles))
	for _, article := range set.Articles {
		data, err := os.ReadFile(filepath.Join(set.Dir, article.File))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", article.File, err)
		}
		text := string(data)
		for from, to := range renames {
			text = strings.ReplaceAll(text, from, to)
		}
		if err := os.WriteFile(filepath.Join(dir, article.File), []byte(text), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", article.File, err)
		}
		chapters = append(chapters, article.File)
	}
	if len(chapters) == 0 {
		return nil, errors.New("content set has no chapters")
	}
	return chapters, nil
}

// stageCover writes the optimised cover into dir and returns its name, or ""
// when the edition has no usable cover.
func (b *Builder) stageCover(set *edition.ContentSet, dir string, logger *slog.Logger) string {
	src := set.CoverPath()
	if src == "" {
		logger.Info("edition has no cover")
		return ""
	}
	err := prepareCover(src, filepath.Join(dir, coverFileName),
		b.cfg.Book.CoverMaxWidth, b.cfg.Book.CoverMaxHeight, b.cfg.Book.CoverQuality)
	if err == nil {
		return coverFileName
	}
	logger.Warn("cover optimisation failed; using original", logging.Error(err))
	fallback := "cover-original" + filepath.Ext(src)
	if copyErr := fileutil.CopyFile(src, filepath.Join(dir, fallback)); copyErr != nil {
		logger.Warn("cover unavailable", logging.Error(copyErr))
		return ""
	}
	return fallback
}

func (b *Builder) stageCSS(dir string, logger *slog.Logger) string {
	path := b.cfg.Converter.CSSPath
	if path == "" {
		return ""
	}
	if err := fileutil.CopyFile(path, filepath.Join(dir, cssFileName)); err != nil {
		logger.Warn("stylesheet unavailable; using converter defaults",
			logging.String("css_path", path),
			logging.Error(err),
		)
		return ""
	}
	return cssFileName
}

func converterArgs(dir, output, css, cover string, extra, chapters []string) []string {
	args := []string{
		"-f", "commonmark",
		"-t", "epub3",
		"--toc", "--toc-depth=1",
		"--epub-chapter-level=1",
		"--standalone",
		"--metadata-file=" + metadataFileName,
		"--resource-path=" + dir,
	}
	if css != "" {
		args = append(args, "--css="+css)
	}
	if cover != "" {
		args = append(args, "--epub-cover-image="+cover)
	}
	args = append(args, extra...)
	args = append(args, "-o", output)
	return append(args, chapters...)
}

func buildError(operation, message string, err error) error {
	return services.Wrap(services.ErrBuild, "build", operation, message, err)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
