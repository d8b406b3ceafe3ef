package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/walkup/printq/internal/core"
)

type JobFinder interface {
	FindByToken(ctx context.Context, token string) ([]*core.PrintJob, error)
}

type FileStore interface {
	Size(path string) (int64, error)
	Open(path string) (io.ReadCloser, error)
}

// Item is one downloadable file resolved for a token.
type Item struct {
	FileName string
	FilePath string
	FileSize int64
}

// Download is the resolved payload for a token: either a single file streamed
// under its own name, or several files wrapped in one zip.
type Download struct {
	Token string
	Items []Item
}

func (d *Download) IsArchive() bool {
	return len(d.Items) > 1
}

func (d *Download) ArchiveName() string {
	return fmt.Sprintf("printjob-%s.zip", d.Token)
}

func (d *Download) Single() Item {
	return d.Items[0]
}

// Builder assembles download payloads. It reads jobs and artifacts only and
// never mutates state; the lifecycle manager guarantees files it has
// scheduled for deletion are gone before their jobs leave pending.
type Builder struct {
	jobs  JobFinder
	store FileStore
}

func NewBuilder(jobs JobFinder, store FileStore) *Builder {
	return &Builder{jobs: jobs, store: store}
}

// BuildDownload resolves the files for every non-deleted job under token.
// Artifacts missing from the backing store are excluded with a warning, not
// an error. Zero remaining files is ErrNotFound.
func (b *Builder) BuildDownload(ctx context.Context, token string) (*Download, error) {
	jobs, err := b.jobs.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	d := &Download{Token: token}
	found := false
	for _, job := range jobs {
		if job.Status == core.JobStatusDeleted {
			continue
		}
		found = true
		for _, f := range job.LiveFiles() {
			// Size comes from the store, not the record; the on-disk file
			// is what gets streamed and its size is what gets advertised.
			size, err := b.store.Size(*f.FilePath)
			if err != nil {
				log.Printf("[archive] artifact missing for job %s: %s", job.ID, *f.FilePath)
				continue
			}
			d.Items = append(d.Items, Item{
				FileName: f.FileName,
				FilePath: *f.FilePath,
				FileSize: size,
			})
		}
	}

	if !found {
		return nil, fmt.Errorf("no jobs for token %s: %w", token, core.ErrNotFound)
	}
	if len(d.Items) == 0 {
		return nil, fmt.Errorf("no downloadable files for token %s: %w", token, core.ErrNotFound)
	}
	return d, nil
}

// WriteArchive streams the download as a zip, one entry per file, without
// buffering the whole archive. The first error is returned to the caller;
// whether it can still reach the client depends on how much has been sent.
func (b *Builder) WriteArchive(ctx context.Context, w io.Writer, d *Download) error {
	zw := zip.NewWriter(w)

	for _, item := range d.Items {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}

		header := &zip.FileHeader{
			Name:     item.FileName,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return fmt.Errorf("failed to create zip entry %s: %w", item.FileName, err)
		}

		if err := b.copyArtifact(entry, item); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func (b *Builder) copyArtifact(dst io.Writer, item Item) error {
	src, err := b.store.Open(item.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", item.FilePath, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to stream artifact %s: %w", item.FilePath, err)
	}
	return nil
}

// WriteSingle streams the one remaining file directly, no zip wrapper.
func (b *Builder) WriteSingle(ctx context.Context, w io.Writer, d *Download) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.copyArtifact(w, d.Single())
}
