package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kaktoslabs/kaktos/pkg/digest"
	"github.com/kaktoslabs/kaktos/pkg/fsutil"
)

// ErrMD5Mismatch is returned when a download completes but its content does
// not hash to the expected MD5.
var ErrMD5Mismatch = errors.New("downloaded content does not match expected md5")

// ErrDownloadFailed wraps a download attempt exhausted by retries.
var ErrDownloadFailed = errors.New("download failed")

// Options configures a single Download call.
type Options struct {
	Retries          int
	RetryBaseDelayMS int
	IOChunkSize      int
	MD5ChunkSize     int
	Resume           bool

	// OnAttempt and OnRetry let the caller publish download_attempt and
	// download_retry events without this package depending on an event
	// sink type.
	OnAttempt func(attempt, attempts int)
	OnRetry   func(attempt int, waitMS int)

	// Sleep is injectable so retry backoff is testable without a real
	// clock. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (o Options) sleep(d time.Duration) {
	if o.Sleep != nil {
		o.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Download fetches url into destPath using transport, retrying up to
// opts.Retries additional times with exponential backoff. When
// opts.Resume is set, partial progress is kept in destPath+".part" and
// resumed via a ranged GET across attempts. expectedMD5 is verified when
// non-empty: in-stream for a full download, or by re-reading the whole
// ".part" file when an attempt appended to it. An empty expectedMD5 skips
// verification.
func Download(ctx context.Context, transport Transport, url, destPath, expectedMD5 string, opts Options) error {
	chunkSize := opts.IOChunkSize
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	md5ChunkSize := opts.MD5ChunkSize
	if md5ChunkSize <= 0 {
		md5ChunkSize = digest.DefaultMD5ChunkSize
	}
	attempts := opts.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	partPath := destPath
	if opts.Resume {
		partPath = destPath + ".part"
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt+1, attempts)
		}

		err := attemptDownload(ctx, transport, url, partPath, expectedMD5, opts.Resume, chunkSize, md5ChunkSize)
		if err == nil {
			if opts.Resume {
				if err := renameIntoPlace(partPath, destPath); err != nil {
					return err
				}
			}
			return nil
		}

		lastErr = err
		if errors.Is(err, ErrMD5Mismatch) {
			// MD5 mismatches are still worth retrying: a flaky transport can
			// truncate or corrupt a stream without the server's fault.
		}
		if attempt == attempts-1 {
			break
		}

		waitMS := opts.RetryBaseDelayMS * (1 << attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, waitMS)
		}
		opts.sleep(time.Duration(waitMS) * time.Millisecond)
	}

	if errors.Is(lastErr, ErrMD5Mismatch) {
		return lastErr
	}
	return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, lastErr)
}

func attemptDownload(ctx context.Context, transport Transport, url, partPath, expectedMD5 string, resume bool, chunkSize, md5ChunkSize int) error {
	var from int64
	var appendMode bool
	if resume {
		if info, err := os.Stat(partPath); err == nil && info.Size() > 0 {
			from = info.Size()
			appendMode = true
		}
	}

	resp, err := transport.Fetch(ctx, url, from)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		appendMode = false
	case http.StatusPartialContent:
		if !resume || from == 0 {
			return fmt.Errorf("unexpected 206 response without a range request")
		}
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(partPath), 0o755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", partPath, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", partPath, err)
	}

	writer := io.Writer(f)
	var tee *digest.TeeMD5Writer
	// MD5 is only meaningful when the stream wasn't already partially
	// written in a prior attempt we're not re-hashing here.
	if expectedMD5 != "" && !appendMode {
		tee = digest.NewTeeMD5Writer(f)
		writer = tee
	}

	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(writer, resp.Body, buf)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("stream %s: %w", url, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", partPath, closeErr)
	}

	if expectedMD5 == "" {
		return nil
	}

	var sum string
	if tee != nil {
		sum = tee.Sum()
	} else {
		sum, err = digest.MD5File(partPath, md5ChunkSize)
		if err != nil {
			return fmt.Errorf("hash %s: %w", partPath, err)
		}
	}
	if !digest.EqualHex(sum, expectedMD5) {
		return ErrMD5Mismatch
	}
	return nil
}

func renameIntoPlace(partPath, destPath string) error {
	if partPath == destPath {
		return nil
	}
	_ = fsutil.RemovePath(destPath)
	if err := os.Rename(partPath, destPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", partPath, destPath, err)
	}
	return nil
}
