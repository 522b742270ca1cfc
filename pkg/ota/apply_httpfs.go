package ota

import (
	"context"
	"fmt"

	"github.com/kaktoslabs/kaktos/pkg/fetch"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
	"github.com/kaktoslabs/kaktos/pkg/httpfs"
	"github.com/kaktoslabs/kaktos/pkg/state"
)

// applyHTTPFS runs the HTTP-FS pipeline: crawl a directory listing and
// mirror every file it finds onto dest_dir, with no manifest, MD5, or
// signature involved.
func (u *Updater) applyHTTPFS(ctx context.Context, correlationID string) error {
	u.publish(EventUpdateStart, map[string]any{"mode": string(HTTPFSMode)})

	if err := u.state.Save(state.Installing); err != nil {
		return fmt.Errorf("enter installing state: %w", err)
	}

	if low, ratio := checkFreeSpace(u.FreeSpace, u.Config.Device.DestDir); low {
		u.Logger.Warnf("low free space before OTA backup (free=%.0f%%)", ratio*100)
	}
	if err := u.backup.Prepare(); err != nil {
		return u.failManifest(ctx, ErrApplyFailed, err.Error())
	}

	crawler := httpfs.NewCrawler(u.Lister, func(ctx context.Context, remoteURL, relPath string) error {
		return u.visitHTTPFSFile(ctx, remoteURL, relPath, correlationID)
	})

	if err := crawler.Crawl(ctx, u.Config.Source.BaseFileURL, ""); err != nil {
		return u.failManifest(ctx, ErrHTTPFSFailed, err.Error())
	}

	if err := u.state.Save(state.ConfirmPending); err != nil {
		return fmt.Errorf("enter confirm_pending state: %w", err)
	}
	u.publish(EventUpdateApplied, map[string]any{"mode": string(HTTPFSMode)})

	return u.Reboot.Reboot(ctx)
}

// visitHTTPFSFile backs up and downloads one file discovered by the crawl.
// Strict mode propagates the error (aborting the crawl and the whole
// apply); non-strict mode reports the failure and lets the crawl continue.
func (u *Updater) visitHTTPFSFile(ctx context.Context, remoteURL, relPath, correlationID string) error {
	u.publish(EventFileUpdateStart, map[string]any{"path": relPath, "mode": string(HTTPFSMode)})

	if _, err := u.backup.Backup(u.Config.Device.DestDir, relPath); err != nil {
		return u.reportHTTPFSFailure(relPath, correlationID, err)
	}

	destPath, err := fsutil.WithinRoot(u.Config.Device.DestDir, relPath)
	if err != nil {
		return u.reportHTTPFSFailure(relPath, correlationID, err)
	}

	opts := fetch.Options{
		Retries:          u.Config.Fetch.Retries,
		RetryBaseDelayMS: u.Config.Fetch.RetryBaseDelay,
		IOChunkSize:      u.Config.Fetch.IOChunkSize,
		MD5ChunkSize:     u.Config.Fetch.MD5ChunkSize,
		Resume:           u.Config.Fetch.ResumeDownloads,
		OnAttempt: func(attempt, attempts int) {
			u.Logger.Debugf("[%s] downloading %s (attempt %d/%d)", correlationID, relPath, attempt, attempts)
			u.publish(EventDownloadAttempt, map[string]any{
				"url": remoteURL, "path": relPath, "attempt": attempt, "attempts": attempts,
				"correlation_id": correlationID,
			})
		},
		OnRetry: func(attempt, waitMS int) {
			u.publish(EventDownloadRetry, map[string]any{"url": remoteURL, "path": relPath, "attempt": attempt, "wait_ms": waitMS})
		},
	}

	if err := fetch.Download(ctx, u.Transport, remoteURL, destPath, "", opts); err != nil {
		return u.reportHTTPFSFailure(relPath, correlationID, err)
	}

	u.publish(EventFileUpdateDone, map[string]any{"path": relPath, "mode": string(HTTPFSMode)})
	return nil
}

func (u *Updater) reportHTTPFSFailure(relPath, correlationID string, err error) error {
	u.publish(EventFileUpdateFailed, map[string]any{"path": relPath, "mode": string(HTTPFSMode), "error": err.Error()})
	u.Logger.Warnf("[%s] failed to download %s: %v", correlationID, relPath, err)
	if u.Config.Source.StrictHTTPFS {
		return err
	}
	return nil
}
