// Package install resolves the injective CLI binary and the cw-hyperlane wasm artifacts,
// from a local build or from a release download.
package install

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/httputil"
	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/ioutil"
)

const (
	InjectiveCLIGit     = "https://github.com/injective-labs/injective"
	InjectiveCLIVersion = "20.5.0"
	InjectiveCLIBin     = "injectived"

	CWHyperlaneGit     = "https://github.com/yorhodes/cw-hyperlane"
	CWHyperlaneVersion = "0.0.6-rc7"

	// EnvCLIPath overrides the CLI download with a local binary.
	EnvCLIPath = "E2E_INJECTIVE_CLI_PATH"
	// EnvCWHyperlanePath overrides the contracts download with a local artifact directory.
	EnvCWHyperlanePath = "E2E_CW_HYPERLANE_PATH"
)

// Installer fetches and unpacks release archives.
type Installer struct {
	Log        log.Logger
	Fs         afero.Fs
	Downloader *httputil.Downloader
}

func (in *Installer) fs() afero.Fs {
	if in.Fs == nil {
		return afero.NewOsFs()
	}
	return in.Fs
}

// fetchRelease downloads an archive into dir and extracts it there.
func (in *Installer) fetchRelease(ctx context.Context, url string, dir string) error {
	fs := in.fs()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create install dir: %w", err)
	}
	archive := path.Join(dir, path.Base(url))
	f, err := fs.Create(archive)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", archive, err)
	}
	in.Log.Info("Downloading release", "url", url)
	err = in.Downloader.Download(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	in.Log.Info("Uncompressing release", "archive", archive)
	if err := ioutil.Extract(fs, archive, dir); err != nil {
		return err
	}
	return fs.Remove(archive)
}

func checkVersion(v string) error {
	if _, err := semver.StrictNewVersion(v); err != nil {
		return fmt.Errorf("invalid release version %q: %w", v, err)
	}
	return nil
}

// Target is the release asset platform name, e.g. linux-amd64.
func Target(goos, goarch string) (string, error) {
	switch goos {
	case "linux", "darwin":
	default:
		return "", fmt.Errorf("os %q is not supported by injective releases", goos)
	}
	arch := "amd64"
	if goarch == "arm64" {
		arch = "arm64"
	}
	return goos + "-" + arch, nil
}

// CLISource is where the injective CLI comes from.
// A non-empty LocalPath wins over the release.
type CLISource struct {
	LocalPath string
	Repo      string
	Version   string
	Target    string
}

// DefaultCLISource downloads the pinned release, unless the env override is set.
func DefaultCLISource(target string) CLISource {
	return CLISource{
		LocalPath: os.Getenv(EnvCLIPath),
		Repo:      InjectiveCLIGit,
		Version:   InjectiveCLIVersion,
		Target:    target,
	}
}

func (s CLISource) ReleaseURL() string {
	return fmt.Sprintf("%s/releases/download/v%s/%s.zip", strings.TrimSuffix(s.Repo, "/"), s.Version, s.Target)
}

func (s CLISource) Check() error {
	if s.LocalPath != "" {
		return nil
	}
	if s.Repo == "" || s.Target == "" {
		return fmt.Errorf("remote CLI source needs a repo and a target")
	}
	return checkVersion(s.Version)
}

// InstallCLI returns the path of the CLI binary, downloading it into dir if needed.
func (in *Installer) InstallCLI(ctx context.Context, s CLISource, dir string) (string, error) {
	if err := s.Check(); err != nil {
		return "", err
	}
	fs := in.fs()
	if s.LocalPath != "" {
		info, err := fs.Stat(s.LocalPath)
		if err != nil {
			return "", fmt.Errorf("local CLI: %w", err)
		}
		if info.IsDir() {
			return ioutil.FindFile(fs, s.LocalPath, InjectiveCLIBin)
		}
		in.Log.Info("Using local injective CLI", "path", s.LocalPath)
		return s.LocalPath, nil
	}
	if err := in.fetchRelease(ctx, s.ReleaseURL(), dir); err != nil {
		return "", err
	}
	bin, err := ioutil.FindFile(fs, dir, InjectiveCLIBin)
	if err != nil {
		return "", err
	}
	if err := fs.Chmod(bin, 0o755); err != nil {
		return "", fmt.Errorf("failed to make %s executable: %w", bin, err)
	}
	in.Log.Info("Installed injective CLI", "version", s.Version, "path", bin)
	return bin, nil
}

// CodeSource is where the cw-hyperlane wasm artifacts come from.
// A non-empty LocalPath wins over the release.
type CodeSource struct {
	LocalPath string
	Repo      string
	Version   string
}

// DefaultCodeSource downloads the pinned release, unless the env override is set.
func DefaultCodeSource() CodeSource {
	return CodeSource{
		LocalPath: os.Getenv(EnvCWHyperlanePath),
		Repo:      CWHyperlaneGit,
		Version:   CWHyperlaneVersion,
	}
}

func (s CodeSource) ReleaseURL() string {
	return fmt.Sprintf("%s/releases/download/v%s/cw-hyperlane-v%s.zip", strings.TrimSuffix(s.Repo, "/"), s.Version, s.Version)
}

func (s CodeSource) Check() error {
	if s.LocalPath != "" {
		return nil
	}
	if s.Repo == "" {
		return fmt.Errorf("remote code source needs a repo")
	}
	return checkVersion(s.Version)
}

// InstallCodes returns the contract name -> wasm path map of the artifacts,
// downloading them into dir if needed. The name is the file name without extension.
func (in *Installer) InstallCodes(ctx context.Context, s CodeSource, dir string) (map[string]string, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if s.LocalPath != "" {
		dir = s.LocalPath
	} else if err := in.fetchRelease(ctx, s.ReleaseURL(), dir); err != nil {
		return nil, err
	}
	in.Log.Info("Installing cw-hyperlane", "path", dir)
	files, err := ioutil.FindFiles(in.fs(), dir, ".wasm")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no wasm artifacts in %s", dir)
	}
	codes := make(map[string]string, len(files))
	for _, f := range files {
		codes[strings.TrimSuffix(path.Base(f), ".wasm")] = f
	}
	return codes, nil
}
