package ota

import (
	"context"
	"fmt"
	"io"

	"github.com/kaktoslabs/kaktos/pkg/fetch"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
	"github.com/kaktoslabs/kaktos/pkg/manifest"
	"github.com/kaktoslabs/kaktos/pkg/plan"
	"github.com/kaktoslabs/kaktos/pkg/state"
)

// applyManifest runs the manifest-driven pipeline: fetch, verify, diff,
// download, delete extras, persist, transition, reboot.
func (u *Updater) applyManifest(ctx context.Context, correlationID string) error {
	u.publish(EventUpdateStart, map[string]any{"mode": string(ManifestMode)})

	remote, err := u.fetchAndVerifyManifest(ctx)
	if err != nil {
		return err
	}

	local := u.manifest.Load()
	if !remote.NewerThan(local, u.Config.Device.ForceUpdate) {
		u.Logger.Infof("no update needed: local and remote manifest versions match")
		return nil
	}

	if low, ratio := checkFreeSpace(u.FreeSpace, u.Config.Device.DestDir); low {
		u.Logger.Warnf("low free space before OTA backup (free=%.0f%%)", ratio*100)
	}

	onDisk, err := u.onDiskExtraCandidates()
	if err != nil {
		return u.failManifest(ctx, ErrApplyFailed, err.Error())
	}
	p := plan.Build(remote, local, onDisk, u.deletePolicy())

	if err := u.state.Save(state.Installing); err != nil {
		return fmt.Errorf("enter installing state: %w", err)
	}
	if err := u.backup.Prepare(); err != nil {
		return u.failManifest(ctx, ErrApplyFailed, err.Error())
	}

	fileActions := p.FileActions()
	total := len(fileActions)
	changed := 0
	for i, action := range fileActions {
		switch action.Kind {
		case plan.Download:
			changed++
			if err := u.applyDownload(ctx, action, i+1, total, correlationID); err != nil {
				return u.failManifest(ctx, classifyDownloadError(err), err.Error())
			}
		case plan.Skip:
			u.publish(EventFileUpdateSkip, map[string]any{"path": action.Path, "index": i + 1, "total": total})
		}
	}

	if err := u.deleteExtras(p.DeleteExtras()); err != nil {
		u.setError(ErrDeleteExtraneousFailed, err.Error())
		u.Logger.Warnf("delete-extras pass had non-fatal failures: %v", err)
	}

	if err := u.manifest.Save(remote); err != nil {
		return u.failManifest(ctx, ErrApplyFailed, fmt.Sprintf("persist local manifest: %v", err))
	}

	if err := u.state.Save(state.ConfirmPending); err != nil {
		return fmt.Errorf("enter confirm_pending state: %w", err)
	}
	u.publish(EventUpdateApplied, map[string]any{"mode": string(ManifestMode)})

	if changed == 0 {
		// A version bump with zero file-level changes never needs a reboot.
		return nil
	}
	return u.Reboot.Reboot(ctx)
}

// applyDownload backs up the current file (if present), downloads its
// replacement, and verifies MD5 when the manifest entry declares one.
func (u *Updater) applyDownload(ctx context.Context, action plan.Action, index, total int, correlationID string) error {
	u.publish(EventFileUpdateStart, map[string]any{
		"path": action.Path, "index": index, "total": total,
		"from": action.FromVersion, "to": action.ToVersion,
	})

	if _, err := u.backup.Backup(u.Config.Device.DestDir, action.Path); err != nil {
		return fmt.Errorf("backup %s before replace: %w", action.Path, err)
	}

	destPath, err := fsutil.WithinRoot(u.Config.Device.DestDir, action.Path)
	if err != nil {
		return err
	}

	remoteURL := joinURL(u.Config.Source.BaseFileURL, action.Path)
	if action.MD5 == "" {
		u.Logger.Warnf("[%s] no md5 provided for %s, skipping verification", correlationID, action.Path)
	}

	opts := fetch.Options{
		Retries:          u.Config.Fetch.Retries,
		RetryBaseDelayMS: u.Config.Fetch.RetryBaseDelay,
		IOChunkSize:      u.Config.Fetch.IOChunkSize,
		MD5ChunkSize:     u.Config.Fetch.MD5ChunkSize,
		Resume:           u.Config.Fetch.ResumeDownloads,
		OnAttempt: func(attempt, attempts int) {
			u.Logger.Debugf("[%s] downloading %s (attempt %d/%d)", correlationID, action.Path, attempt, attempts)
			u.publish(EventDownloadAttempt, map[string]any{
				"url": remoteURL, "path": action.Path, "attempt": attempt, "attempts": attempts,
				"correlation_id": correlationID,
			})
		},
		OnRetry: func(attempt, waitMS int) {
			u.publish(EventDownloadRetry, map[string]any{
				"url": remoteURL, "path": action.Path, "attempt": attempt, "wait_ms": waitMS,
			})
		},
	}

	if err := fetch.Download(ctx, u.Transport, remoteURL, destPath, action.MD5, opts); err != nil {
		return err
	}

	u.publish(EventFileUpdateDone, map[string]any{"path": action.Path, "index": index, "total": total})
	return nil
}

// fetchAndVerifyManifest fetches the remote manifest, parses it, and checks
// its HMAC signature when a shared key is configured. Failures here happen
// before any destructive mutation, so they are terminal for this check but
// never trigger a revert or reboot.
func (u *Updater) fetchAndVerifyManifest(ctx context.Context) (manifest.Manifest, error) {
	resp, err := u.Transport.Fetch(ctx, u.Config.Source.ManifestURL, 0)
	if err != nil {
		return manifest.Manifest{}, u.failPrelude(ErrManifestFetchFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return manifest.Manifest{}, u.failPrelude(ErrManifestFetchFailed, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return manifest.Manifest{}, u.failPrelude(ErrManifestFetchFailed, err.Error())
	}

	field := u.Config.Source.SignatureField
	remote, sig, err := manifest.Parse(data, field)
	if err != nil {
		return manifest.Manifest{}, u.failPrelude(ErrManifestFetchFailed, err.Error())
	}

	if key := u.Config.Source.ManifestAuthKey; key != "" {
		ok, err := manifest.Verify(data, field, sig, []byte(key))
		if err != nil || !ok {
			return manifest.Manifest{}, u.failPrelude(ErrManifestSignatureInvalid, "signature verification failed")
		}
	}

	return remote, nil
}

// failPrelude records a terminal error that occurred before the updater
// entered installing: nothing was mutated, so there is nothing to revert and
// no reason to reboot.
func (u *Updater) failPrelude(code ErrorCode, message string) error {
	u.setError(code, message)
	u.Logger.Errorf("OTA update failed: %s: %s", code, message)
	return newError(code, message, nil)
}

// failManifest records the terminal error, reverts, reboots, and returns an
// error the caller can propagate. Both the manifest and HTTP-FS pipelines
// route their apply failures through here; a failure to write the installing
// or confirm_pending marker itself is returned directly instead.
func (u *Updater) failManifest(ctx context.Context, code ErrorCode, message string) error {
	u.setError(code, message)
	u.Logger.Errorf("OTA update failed: %s: %s", code, message)
	if err := u.revert(ctx); err != nil {
		u.Logger.Errorf("revert after failure also failed: %v", err)
	} else if err := u.Reboot.Reboot(ctx); err != nil {
		u.Logger.Errorf("reboot after revert failed: %v", err)
	}
	return newError(code, message, nil)
}

func classifyDownloadError(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if _, ok := asMD5Mismatch(err); ok {
		return ErrMD5Mismatch
	}
	return ErrDownloadFailed
}

func asMD5Mismatch(err error) (error, bool) {
	for e := err; e != nil; {
		if e == fetch.ErrMD5Mismatch {
			return e, true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}

func joinURL(base, relPath string) string {
	trimmed := base
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed + "/" + relPath
}
