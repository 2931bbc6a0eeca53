// Package download resolves a dataset's catalog metadata, fetches its
// archive, and unpacks it idempotently under the results directory.
package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rfharvest/pkg/catalog"
	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
)

// Catalog is the slice of the API client the orchestrator needs
type Catalog interface {
	GetProject(ctx context.Context, workspaceID, projectID string) (*catalog.Project, error)
	DownloadVersion(ctx context.Context, workspaceID, projectID string, versionID int, format string, w io.Writer) (int64, error)
}

// Orchestrator downloads and unpacks one dataset at a time. Fetch is
// idempotent per (workspace, project): an archive already on disk short
// circuits without a network call.
type Orchestrator struct {
	api        Catalog
	resultsDir string
	log        logger.Logger
}

// NewOrchestrator creates a download orchestrator rooted at resultsDir
func NewOrchestrator(api Catalog, resultsDir string, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Orchestrator{api: api, resultsDir: resultsDir, log: log}
}

// Fetch downloads the latest version of a dataset and unpacks it.
//
// Returns the extraction directory on a clean unpack, or the archive
// path itself when the downloaded file is not a valid zip (a successful
// download of an unreadable artifact is still a success).
func (o *Orchestrator) Fetch(ctx context.Context, workspaceID, projectID string) (string, error) {
	log := o.log.WithFields(map[string]interface{}{
		"workspace": workspaceID,
		"project":   projectID,
	})

	// Idempotent re-entry: any archive for this project short-circuits
	if existing, ok := o.existingArchive(workspaceID, projectID); ok {
		log.WithField("path", existing).Info("Dataset archive already present, skipping download")
		return existing, nil
	}

	project, err := o.api.GetProject(ctx, workspaceID, projectID)
	if err != nil {
		return "", err
	}

	version, ok := project.LatestVersion()
	if !ok {
		return "", errs.New(errs.ErrorTypeNotFound,
			fmt.Sprintf("no versions available for %s/%s", workspaceID, projectID))
	}

	format := catalog.PrimaryFormat(project.Type)
	log.InfoWithFields("Downloading dataset", map[string]interface{}{
		"version": version.ID,
		"format":  format,
		"type":    project.Type,
	})

	archivePath, err := o.streamArchive(ctx, workspaceID, projectID, version.ID, format)
	if err != nil {
		return "", err
	}

	extractDir, err := o.unpack(archivePath, projectID, format)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeBadArchive) {
			log.WithField("path", archivePath).Warn("Downloaded file is not a valid archive, keeping raw file")
			return archivePath, nil
		}
		return "", err
	}

	log.WithField("path", extractDir).Info("Dataset downloaded and extracted")
	return extractDir, nil
}

// existingArchive looks for any previously downloaded archive for the
// project, regardless of format
func (o *Orchestrator) existingArchive(workspaceID, projectID string) (string, bool) {
	pattern := filepath.Join(o.projectDir(workspaceID, projectID), projectID+"_*.zip")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// streamArchive downloads the archive through a temp file and renames it
// into place, so a partial transfer never looks like a finished download
func (o *Orchestrator) streamArchive(ctx context.Context, workspaceID, projectID string, versionID int, format string) (string, error) {
	dir := o.projectDir(workspaceID, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	archivePath := filepath.Join(dir, fmt.Sprintf("%s_%s.zip", projectID, format))
	tmpPath := archivePath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating archive file: %w", err)
	}

	n, err := o.api.DownloadVersion(ctx, workspaceID, projectID, versionID, format, f)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing archive file: %w", cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving archive into place: %w", err)
	}

	o.log.DebugWithFields("Archive written", map[string]interface{}{
		"path":  archivePath,
		"bytes": n,
	})

	return archivePath, nil
}

// unpack extracts the archive next to itself. Returns a bad_archive
// error when the file is not a zip.
func (o *Orchestrator) unpack(archivePath, projectID, format string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", errs.New(errs.ErrorTypeBadArchive,
			fmt.Sprintf("not a valid zip archive: %s", archivePath))
	}
	defer reader.Close()

	extractDir := filepath.Join(filepath.Dir(archivePath), fmt.Sprintf("%s_%s", projectID, format))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", fmt.Errorf("creating extraction directory: %w", err)
	}

	for _, file := range reader.File {
		if err := extractFile(file, extractDir); err != nil {
			return "", fmt.Errorf("extracting %s: %w", file.Name, err)
		}
	}

	return extractDir, nil
}

func extractFile(file *zip.File, destDir string) error {
	// Reject entries that would escape the extraction directory
	path := filepath.Join(destDir, file.Name)
	if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal archive path: %s", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(path, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// projectDir is the per-project directory under the results root
func (o *Orchestrator) projectDir(workspaceID, projectID string) string {
	return filepath.Join(o.resultsDir, fmt.Sprintf("%s_%s", workspaceID, projectID))
}
