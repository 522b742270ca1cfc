// Package ota implements the Orchestrator: the device-side state machine
// that drives manifest-diff, download, verify, apply, and revert.
package ota

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/kaktoslabs/kaktos/pkg/backup"
	"github.com/kaktoslabs/kaktos/pkg/fetch"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
	"github.com/kaktoslabs/kaktos/pkg/httpfs"
	"github.com/kaktoslabs/kaktos/pkg/manifest"
	"github.com/kaktoslabs/kaktos/pkg/plan"
	"github.com/kaktoslabs/kaktos/pkg/reboot"
	"github.com/kaktoslabs/kaktos/pkg/state"
)

// Mode selects between the manifest-driven pipeline and the HTTP-FS crawl.
type Mode string

const (
	ManifestMode Mode = "manifest"
	HTTPFSMode   Mode = "http_fs"
)

// Updater owns every durable artifact of one device's OTA lifecycle: the
// state marker, the local manifest, and the backup directory. Its lifetime
// is bounded by Release(); nothing it holds is a process-wide global.
type Updater struct {
	Config Config
	Logger Logger
	Sink   Sink

	Transport fetch.Transport
	Lister    httpfs.Lister
	Reboot    reboot.Hook
	FreeSpace fsutil.FreeSpaceFunc

	state    state.Store
	manifest manifest.Store
	backup   *backup.Manager

	lastErrorCode    ErrorCode
	lastErrorMessage string
}

// New builds an Updater from cfg, wiring production defaults for every
// injectable dependency (HTTP transport, directory lister, reboot command,
// filesystem free-space probe). Tests substitute fakes for these fields
// after construction.
func New(cfg Config) *Updater {
	destDir := cfg.Device.DestDir
	backupDir := filepath.Join(destDir, cfg.Device.ApplicationName+"_backup")

	timeout := time.Duration(cfg.Source.HTTPTimeoutS) * time.Second

	return &Updater{
		Config:    cfg,
		Logger:    noopLogger{},
		Transport: fetch.NewHTTPTransport(timeout),
		Lister:    &httpfs.HTTPLister{},
		Reboot:    reboot.NewCommandHook("reboot"),
		FreeSpace: fsutil.DefaultFreeSpace,

		state:    state.New(filepath.Join(destDir, cfg.Device.StateFile)),
		manifest: manifest.NewStore(filepath.Join(destDir, cfg.Device.LocalManifestFile)),
		backup:   backup.New(backupDir, cfg.Backup.SkipExtensions, cfg.Backup.SkipPrefixes, cfg.Fetch.IOChunkSize),
	}
}

// LastError returns the most recently recorded terminal failure, if any.
func (u *Updater) LastError() (ErrorCode, string) {
	return u.lastErrorCode, u.lastErrorMessage
}

// Status is a read-only snapshot of the updater's durable on-disk state,
// for a CLI or monitoring agent to report without driving a check.
type Status struct {
	State           state.State
	Recognized      bool
	LocalManifest   manifest.Manifest
	BackupPresent   bool
}

// Status reads the state marker, local manifest, and backup directory
// without mutating any of them.
func (u *Updater) Status() (Status, error) {
	current, recognized, err := u.state.Load()
	if err != nil {
		return Status{}, fmt.Errorf("read updater state: %w", err)
	}
	return Status{
		State:         current,
		Recognized:    recognized,
		LocalManifest: u.manifest.Load(),
		BackupPresent: u.backup.Exists(),
	}, nil
}

func (u *Updater) setError(code ErrorCode, message string) {
	u.lastErrorCode = code
	u.lastErrorMessage = message
}

func (u *Updater) clearError() {
	u.lastErrorCode = ""
	u.lastErrorMessage = ""
}

// CheckAndPerformOTA is the single public entry point. It performs the
// recovery preflight, then dispatches to the manifest or HTTP-FS pipeline.
func (u *Updater) CheckAndPerformOTA(ctx context.Context) error {
	proceed, err := u.recoveryPreflight(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	correlationID := uuid.NewString()
	u.clearError()

	if u.Config.Source.RecurseHTTPFS {
		return u.applyHTTPFS(ctx, correlationID)
	}
	return u.applyManifest(ctx, correlationID)
}

// recoveryPreflight reads UpdaterState and handles the two non-idle states.
// It returns proceed=true only when a new apply may begin.
func (u *Updater) recoveryPreflight(ctx context.Context) (bool, error) {
	current, recognized, err := u.state.Load()
	if err != nil {
		return false, fmt.Errorf("read updater state: %w", err)
	}
	if !recognized {
		u.Logger.Warnf("unrecognized state marker content, treating as idle")
	}

	switch current {
	case state.Installing:
		u.Logger.Warnf("prior OTA attempt was interrupted while installing; reverting")
		if err := u.revert(ctx); err != nil {
			return false, fmt.Errorf("revert interrupted install: %w", err)
		}
		if err := u.Reboot.Reboot(ctx); err != nil {
			u.Logger.Errorf("reboot after recovery revert failed: %v", err)
		}
		return false, nil
	case state.ConfirmPending:
		u.Logger.Infof("an OTA update is awaiting confirmation; refusing to start a new check")
		return false, nil
	default:
		return true, nil
	}
}

// checkFreeSpace reports whether free space on the filesystem holding path
// is below 40% of total capacity. A named, testable helper per the
// original's "_warn_if_low_free_space" heuristic; errors from fn are
// treated as "nothing to warn about" rather than fatal.
func checkFreeSpace(fn fsutil.FreeSpaceFunc, path string) (low bool, ratio float64) {
	if fn == nil {
		return false, 1
	}
	ratio, err := fsutil.FreeRatio(fn, path)
	if err != nil {
		return false, 1
	}
	return ratio < 0.40, ratio
}

// ConfirmUpdate marks a pending update as confirmed by the running
// application. When cleanup is true the backup directory is removed
// immediately; otherwise it is left for a later CleanupFiles call.
func (u *Updater) ConfirmUpdate(cleanup bool) (bool, error) {
	current, _, err := u.state.Load()
	if err != nil {
		return false, fmt.Errorf("read updater state: %w", err)
	}
	if current != state.ConfirmPending {
		return false, nil
	}
	if err := u.state.Save(state.Idle); err != nil {
		return false, fmt.Errorf("confirm update: %w", err)
	}
	if cleanup {
		if _, err := u.CleanupFiles(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// CleanupFiles removes the backup directory once the application no longer
// needs rollback protection. It refuses while a confirmation is pending.
func (u *Updater) CleanupFiles() (bool, error) {
	current, _, err := u.state.Load()
	if err != nil {
		return false, fmt.Errorf("read updater state: %w", err)
	}
	if current == state.ConfirmPending {
		u.Logger.Warnf("cleanup blocked: OTA confirmation is still pending")
		return false, nil
	}
	if !u.backup.Exists() {
		return false, nil
	}
	if err := u.backup.Teardown(); err != nil {
		return false, fmt.Errorf("cleanup backup directory: %w", err)
	}
	return true, nil
}

// RevertUpdate restores the backup directory over the destination tree,
// resets state to idle, and reboots. It is the public counterpart of the
// revert path the recovery preflight runs automatically.
func (u *Updater) RevertUpdate(ctx context.Context) error {
	if err := u.revert(ctx); err != nil {
		return err
	}
	return u.Reboot.Reboot(ctx)
}

func (u *Updater) revert(ctx context.Context) error {
	if u.backup.Exists() {
		if err := u.backup.Restore(u.Config.Device.DestDir); err != nil {
			return fmt.Errorf("restore from backup: %w", err)
		}
		if err := u.backup.Teardown(); err != nil {
			u.Logger.Warnf("failed to remove backup directory after revert: %v", err)
		}
	}
	return u.state.Save(state.Idle)
}

// Release drops every handle and buffer the Updater is holding: there is no
// reference-counted runtime to coax into collecting, just injected
// dependencies to let go of.
func (u *Updater) Release() {
	u.Transport = nil
	u.Lister = nil
	u.Reboot = nil
	u.FreeSpace = nil
	u.Sink = nil
}

// onDiskExtraCandidates lists files under dest_dir that are not the
// updater's own internal artifacts: the state marker, the local manifest,
// and the backup directory.
func (u *Updater) onDiskExtraCandidates() ([]string, error) {
	all, err := fsutil.ListRelative(u.Config.Device.DestDir)
	if err != nil {
		return nil, fmt.Errorf("list destination tree: %w", err)
	}

	internal := map[string]struct{}{
		u.Config.Device.StateFile:         {},
		u.Config.Device.LocalManifestFile: {},
	}
	backupPrefix := u.Config.Device.ApplicationName + "_backup/"

	out := make([]string, 0, len(all))
	for _, rel := range all {
		if _, ok := internal[rel]; ok {
			continue
		}
		if len(rel) >= len(backupPrefix) && rel[:len(backupPrefix)] == backupPrefix {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

func (u *Updater) deletePolicy() plan.Policy {
	return plan.Policy{
		Mode:       plan.Mode(u.Config.Delete.Policy),
		Extensions: u.Config.Delete.Extensions,
		Root:       u.Config.Device.DestDir,
	}
}

// deleteExtras backs up and removes each DeleteExtra action's target,
// aggregating per-file failures rather than aborting the whole apply: a
// failure to delete one extraneous file is logged and skipped, not fatal.
func (u *Updater) deleteExtras(actions []plan.Action) error {
	var merr *multierror.Error
	for _, action := range actions {
		if _, err := u.backup.Backup(u.Config.Device.DestDir, action.Path); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("backup before delete %s: %w", action.Path, err))
			continue
		}
		full, err := fsutil.WithinRoot(u.Config.Device.DestDir, action.Path)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if err := fsutil.RemovePath(full); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("delete %s: %w", action.Path, err))
			continue
		}
		u.publish(EventFileDeleteExtra, map[string]any{"path": action.Path, "policy": string(u.Config.Delete.Policy)})
	}
	return merr.ErrorOrNil()
}
