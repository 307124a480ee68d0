package ioutil

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// Extract unpacks a .zip, .tar or .tar.gz/.tgz archive into outDir.
// A nil fs means the OS filesystem.
func Extract(fs afero.Fs, archivePath string, outDir string) error {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return Unzip(fs, archivePath, outDir)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		f, err := fs.Open(archivePath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		return Untar(fs, outDir, tar.NewReader(gz))
	case strings.HasSuffix(name, ".tar"):
		f, err := fs.Open(archivePath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()
		return Untar(fs, outDir, tar.NewReader(f))
	default:
		return fmt.Errorf("unsupported archive format: %s", archivePath)
	}
}

func Untar(fs afero.Fs, outDir string, tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		dst, err := safeJoin(outDir, hdr.Name)
		if err != nil {
			return err
		}
		if hdr.FileInfo().IsDir() {
			if err := fs.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			continue // links and devices are not needed for release bundles
		}
		if err := writeFile(fs, dst, tr, hdr.FileInfo().Mode().Perm()); err != nil {
			return fmt.Errorf("failed to untar file: %w", err)
		}
	}
}

func Unzip(fs afero.Fs, archivePath string, outDir string) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("failed to read zip: %w", err)
	}
	for _, zf := range zr.File {
		dst, err := safeJoin(outDir, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := fs.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if err := unzipFile(fs, dst, zf); err != nil {
			return fmt.Errorf("failed to unzip %s: %w", zf.Name, err)
		}
	}
	return nil
}

func unzipFile(fs afero.Fs, dst string, zf *zip.File) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFile(fs, dst, rc, zf.Mode().Perm())
}

func writeFile(fs afero.Fs, dst string, r io.Reader, perm os.FileMode) error {
	if err := fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if _, err := io.Copy(buf, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

func safeJoin(outDir, name string) (string, error) {
	cleanedName := path.Clean(filepath.ToSlash(name))
	if strings.Contains(cleanedName, "..") || path.IsAbs(cleanedName) {
		return "", fmt.Errorf("invalid file path: %s", name)
	}
	return path.Join(outDir, cleanedName), nil
}

// FindFiles lists regular files directly inside dir whose name has the given suffix.
func FindFiles(fs afero.Fs, dir string, suffix string) ([]string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		out = append(out, path.Join(dir, e.Name()))
	}
	return out, nil
}

// FindFile walks dir and returns the first regular file with the given base name.
func FindFile(fs afero.Fs, dir string, name string) (string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	var found string
	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !info.IsDir() && info.Name() == name {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("%s not found in %s: %w", name, dir, os.ErrNotExist)
	}
	return found, nil
}
