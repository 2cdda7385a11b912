package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/CZERTAINLY/Piper/internal/model"
)

type Uploader interface {
	Upload(ctx context.Context, raw []byte) error
}

type UploadCloser interface {
	Uploader
	Close() error
}

func uploaders(_ context.Context, cfg model.Service) ([]Uploader, error) {
	reporting := cfg.Report != nil && cfg.Report.Enabled
	if cfg.Dir == "" && !reporting {
		return []Uploader{NewWriteUploader(os.Stdout)}, nil
	}

	var uploaders []Uploader
	if cfg.Dir != "" {
		u, err := NewDirUploader(cfg.Dir)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}

	if reporting {
		u, err := NewReportUploader(cfg.Report.URL, cfg.Report.Token)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, u)
	}
	return uploaders, nil
}

type WriteUploader struct {
	w io.Writer
}

func NewWriteUploader(w io.Writer) WriteUploader {
	return WriteUploader{w: w}
}

func (u WriteUploader) Upload(_ context.Context, raw []byte) error {
	if u.w == nil {
		u.w = os.Stdout
	}
	_, err := u.w.Write(raw)
	return err
}

// DirUploader saves every delivery as a timestamped file inside a
// directory. The directory is opened as an os.Root, so a malicious
// path inside it cannot escape.
type DirUploader struct {
	root *os.Root
}

func NewDirUploader(path string) (*DirUploader, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &DirUploader{root: root}, nil
}

func (u *DirUploader) Upload(ctx context.Context, raw []byte) error {
	if u.root == nil {
		return errors.New("root already closed")
	}

	path := "piper-" + time.Now().Format("2006-01-02-15-04-05") + ".log"

	f, err := u.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	_, err = f.Write(raw)
	if err != nil {
		return fmt.Errorf("saving output: %w", err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	slog.InfoContext(ctx, "output saved", "path", path)
	return nil
}

func (u *DirUploader) Close() error {
	if u.root == nil {
		return errors.New("uploader already closed")
	}
	err := u.root.Close()
	u.root = nil
	return err
}
