package updater

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agnosto/autoposter/logger"
)

const binaryName = "autoposter"

// ReleaseURL is the GitHub "latest release" endpoint queried for updates.
var ReleaseURL = "https://api.github.com/repos/agnosto/autoposter/releases/latest"

var httpClient = &http.Client{Timeout: 30 * time.Second}

type GithubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// CheckUpdateAvailable reports whether the latest release tag differs from
// currentVersion, and that tag.
func CheckUpdateAvailable(ctx context.Context, currentVersion string) (bool, string, error) {
	release, err := getLatestRelease(ctx)
	if err != nil {
		return false, "", fmt.Errorf("failed to get latest release: %w", err)
	}
	return release.TagName != normalizeVersion(currentVersion), release.TagName, nil
}

// CheckForUpdate downloads and installs the latest release when it differs
// from currentVersion.
func CheckForUpdate(ctx context.Context, currentVersion string) error {
	release, err := getLatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}

	if release.TagName == normalizeVersion(currentVersion) {
		fmt.Println("You are already on the latest version.")
		return nil
	}

	fmt.Printf("New version available: %s\n", release.TagName)
	return updateBinary(ctx, release)
}

func getLatestRelease(ctx context.Context) (*GithubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release endpoint returned status %d", resp.StatusCode)
	}

	var release GithubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	if release.TagName == "" {
		return nil, errors.New("release has no tag")
	}
	return &release, nil
}

func assetName(tag string) string {
	return fmt.Sprintf("%s_%s_%s_%s.tar.gz", binaryName, strings.TrimPrefix(tag, "v"), runtime.GOOS, runtime.GOARCH)
}

func updateBinary(ctx context.Context, release *GithubRelease) error {
	want := assetName(release.TagName)

	var downloadURL string
	for _, asset := range release.Assets {
		if asset.Name == want {
			downloadURL = asset.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("no suitable binary found for your system")
	}

	fmt.Println("Downloading new version...")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tempDir, err := os.MkdirTemp("", "autoposter-update")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	outPath, err := extractBinary(resp.Body, tempDir)
	if err != nil {
		return err
	}
	return install(outPath, tempDir)
}

// extractBinary unpacks the release archive into dir and returns the path
// of the executable it contained.
func extractBinary(r io.Reader, dir string) (string, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return "", err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if header.Typeflag != tar.TypeReg || !strings.HasPrefix(filepath.Base(header.Name), binaryName) {
			continue
		}

		outPath := filepath.Join(dir, filepath.Base(header.Name))
		outFile, err := os.Create(outPath)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			return "", err
		}
		outFile.Close()
		if err := os.Chmod(outPath, 0755); err != nil {
			return "", err
		}
		return outPath, nil
	}
	return "", fmt.Errorf("binary not found in the archive")
}

func install(newBinary, tempDir string) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		// The running executable is locked; a script swaps it after exit.
		updateScript := filepath.Join(tempDir, "update.bat")
		scriptContent := fmt.Sprintf(`@echo off
:loop
tasklist /FI "IMAGENAME eq %s" 2>NUL | find /I /N "%s">NUL
if "%%ERRORLEVEL%%"=="0" (
    timeout /t 1 >nul
    goto loop
)
move /Y "%s" "%s"
del "%s"
`, filepath.Base(execPath), filepath.Base(execPath), newBinary, execPath, updateScript)

		if err := os.WriteFile(updateScript, []byte(scriptContent), 0755); err != nil {
			return err
		}
		if err := exec.Command("cmd", "/C", updateScript).Start(); err != nil {
			return err
		}
		fmt.Println("Update downloaded. It will be applied when you exit the program.")
		return nil
	}

	if err := os.Rename(newBinary, execPath); err != nil {
		return err
	}
	logger.Logger.WithField("path", execPath).Info("Binary updated")
	fmt.Println("Update successful. Please restart the application.")
	return nil
}
