// Package storage owns the on-disk layout: raw downloads, finished
// documents and their metadata sidecars, quarantined artifacts of failed
// jobs, incoming webhook payloads, and a scratch area for in-flight writes.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	incomingDirName = "incoming"
	rawDirName      = "raw"
	documentDirName = "documents"
	metadataDirName = "document-metadata"
	quarantineDir   = "quarantine"
	tmpDirName      = "tmp"
)

// Layout resolves every path under one storage root.
type Layout struct {
	root   string
	logger *slog.Logger
}

// NewLayout creates the directory tree under root.
func NewLayout(root string, logger *slog.Logger) (*Layout, error) {
	l := &Layout{root: root, logger: logger}
	for _, dir := range []string{
		incomingDirName, rawDirName, documentDirName,
		metadataDirName, quarantineDir, tmpDirName,
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
		}
	}
	return l, nil
}

// TmpDir is the scratch area for streaming downloads before the atomic move.
func (l *Layout) TmpDir() string {
	return filepath.Join(l.root, tmpDirName)
}

// RawDir returns (and creates) the download directory for one job.
func (l *Layout) RawDir(sender, jobID string) (string, error) {
	dir := filepath.Join(l.root, rawDirName, sanitize(sender),
		fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102"), sanitize(jobID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create raw dir: %w", err)
	}
	return dir, nil
}

// DocumentPaths returns the deterministic document and sidecar paths for a
// completed job.
func (l *Layout) DocumentPaths(sender, jobID string) (pdfPath, metaPath string) {
	base := fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102"), sanitize(sender), sanitize(jobID))
	pdfPath = filepath.Join(l.root, documentDirName, base+".pdf")
	metaPath = filepath.Join(l.root, metadataDirName, base+".json")
	return pdfPath, metaPath
}

// SaveIncomingPayload archives one raw webhook body for audit and replay.
func (l *Layout) SaveIncomingPayload(msgID string, payload []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.json", time.Now().UTC().Format("20060102T150405"), sanitize(msgID))
	path := filepath.Join(l.root, incomingDirName, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to save incoming payload: %w", err)
	}
	return path, nil
}

// QuarantineJob moves a failed job's artifacts under quarantine/<jobID>.
// Missing paths are skipped; move failures are logged, not fatal, so a
// quarantine attempt never masks the original job error.
func (l *Layout) QuarantineJob(jobID string, paths ...string) error {
	dest := filepath.Join(l.root, quarantineDir, sanitize(jobID))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create quarantine dir: %w", err)
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		target := filepath.Join(dest, filepath.Base(p))
		if err := os.Rename(p, target); err != nil {
			l.logger.Warn("Failed to quarantine artifact",
				slog.String("job_id", jobID),
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}

	l.logger.Info("Job quarantined",
		slog.String("job_id", jobID),
		slog.String("dir", dest),
	)
	return nil
}

// CleanupRaw deletes per-job raw directories whose modification time is
// older than maxAge. Returns the number of directories removed.
func (l *Layout) CleanupRaw(maxAge time.Duration) (int, error) {
	rawRoot := filepath.Join(l.root, rawDirName)
	senders, err := os.ReadDir(rawRoot)
	if err != nil {
		return 0, fmt.Errorf("failed to read raw root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, sender := range senders {
		if !sender.IsDir() {
			continue
		}
		senderDir := filepath.Join(rawRoot, sender.Name())
		jobs, err := os.ReadDir(senderDir)
		if err != nil {
			continue
		}
		for _, job := range jobs {
			info, err := job.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(senderDir, job.Name())); err != nil {
				l.logger.Warn("Failed to remove stale raw dir",
					slog.String("dir", job.Name()),
					slog.String("error", err.Error()),
				)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// sanitize keeps path components filesystem safe.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
