// Package assets downloads and caches the binary inputs of an EFI build:
// the OpenCore release, the kexts listed in the sources manifest, the
// OcBinaryData drivers, and the AMD vanilla patch set.
//
// Downloads go through GitHub releases when possible and fall back to git.
// Everything lands under out/ so a build never reaches for the network
// twice for the same version.
package assets

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/common"
)

// Fetcher downloads everything the sources manifest names into the
// project's out/ tree.
type Fetcher struct {
	Paths    common.Paths
	Manifest *Manifest

	client *retryablehttp.Client
}

func NewFetcher(paths common.Paths, manifest *Manifest) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 4
	client.Logger = nil
	return &Fetcher{
		Paths:    paths,
		Manifest: manifest,
		client:   client,
	}
}

// CheckPrerequisites verifies the external tools fetching depends on.
func CheckPrerequisites() error {
	var missing []string
	for _, tool := range []string{"git", "unzip"} {
		if !common.CommandExists(tool) {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FetchAll retrieves every asset the manifest names. OpenCore itself is
// fatal on failure, the auxiliary sources only warn so that a build can
// proceed with what is already cached.
func (f *Fetcher) FetchAll(force bool) error {
	if err := CheckPrerequisites(); err != nil {
		return err
	}

	if err := f.FetchOpenCore(force); err != nil {
		return err
	}
	if err := f.FetchKexts(force); err != nil {
		return err
	}
	if err := f.FetchOCBinaryData(); err != nil {
		logrus.Warnf("OcBinaryData fetch failed: %v", err)
	}
	if err := f.FetchAMDVanilla(); err != nil {
		logrus.Warnf("AMD vanilla patches fetch failed: %v", err)
	}
	if err := f.ExtractLocalAssets(); err != nil {
		logrus.Warnf("Local asset extraction failed: %v", err)
	}
	return nil
}

// FetchOpenCore makes sure the configured OpenCore release is unpacked
// under out/opencore and that the build tree holds its core files.
// Releases are cached per version under out/cache.
func (f *Fetcher) FetchOpenCore(force bool) error {
	oc := f.Manifest.OpenCore
	cacheDir := filepath.Join(f.Paths.Cache, "opencore-"+oc.Version)

	if force {
		if err := os.RemoveAll(cacheDir); err != nil {
			return fmt.Errorf("cannot clear OpenCore cache: %v", err)
		}
	}

	if filesDirIn(cacheDir) == "" {
		logrus.Infof("Fetching OpenCore %s", oc.Version)
		if err := f.downloadOpenCoreRelease(oc, cacheDir); err != nil {
			logrus.Warnf("Release download failed (%v), falling back to git", err)
			if err := f.cloneOpenCore(oc, cacheDir); err != nil {
				return fmt.Errorf("cannot fetch OpenCore %s: %v", oc.Version, err)
			}
		}
	} else {
		logrus.Infof("Using cached OpenCore %s", oc.Version)
	}

	filesDir := filesDirIn(cacheDir)
	if filesDir == "" {
		return fmt.Errorf("no X64 or IA32_X64 directory in %s", cacheDir)
	}

	if err := common.CopyTree(cacheDir, f.Paths.OpenCoreRelease); err != nil {
		return fmt.Errorf("cannot install OpenCore release: %v", err)
	}
	for _, tool := range []string{f.Paths.Ocvalidate, f.Paths.Macserial} {
		if _, err := os.Stat(tool); err == nil {
			if err := os.Chmod(tool, 0755); err != nil {
				return fmt.Errorf("cannot make %s executable: %v", tool, err)
			}
		}
	}

	return f.populateBuildTree(filepath.Join(f.Paths.OpenCoreRelease, filesDir))
}

// filesDirIn returns the architecture directory of an unpacked release,
// or "" when the release is not usable.
func filesDirIn(dir string) string {
	for _, arch := range []string{"X64", "IA32_X64"} {
		if info, err := os.Stat(filepath.Join(dir, arch)); err == nil && info.IsDir() {
			return arch
		}
	}
	return ""
}

func (f *Fetcher) downloadOpenCoreRelease(oc OpenCoreSource, cacheDir string) error {
	url := fmt.Sprintf("https://github.com/%s/releases/download/%s/OpenCore-%s-RELEASE.zip",
		oc.Repo, oc.Version, oc.Version)
	zipPath := cacheDir + ".zip"

	if err := f.download(url, zipPath); err != nil {
		return err
	}
	defer os.Remove(zipPath)

	if err := common.EnsureDir(cacheDir); err != nil {
		return err
	}
	if out, err := common.RunCommand("unzip", "-o", "-q", zipPath, "-d", cacheDir); err != nil {
		return fmt.Errorf("cannot unpack %s: %v: %s", zipPath, err, out)
	}
	return nil
}

// cloneOpenCore is the fallback when the release asset cannot be
// downloaded, trying ssh before https. The version tag is checked out
// when possible; otherwise the repository HEAD is used with a warning.
func (f *Fetcher) cloneOpenCore(oc OpenCoreSource, cacheDir string) error {
	urls := []string{
		fmt.Sprintf("git@github.com:%s.git", oc.Repo),
		fmt.Sprintf("https://github.com/%s.git", oc.Repo),
	}

	var lastErr error
	for _, url := range urls {
		if err := gitCloneOrReset(url, cacheDir); err != nil {
			lastErr = err
			continue
		}
		if out, err := common.RunCommandDir(cacheDir, "git", "checkout", oc.Version); err != nil {
			if _, err := common.RunCommandDir(cacheDir, "git", "fetch", "--tags"); err == nil {
				out, err = common.RunCommandDir(cacheDir, "git", "checkout", oc.Version)
			}
			if err != nil {
				logrus.Warnf("Cannot check out %s (%s), using repository HEAD", oc.Version, strings.TrimSpace(out))
			}
		}
		return nil
	}
	return lastErr
}

// gitCloneOrReset shallow-clones url into dest, or brings an existing
// clone back to a pristine state.
func gitCloneOrReset(url, dest string) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		if out, err := common.RunCommandDir(dest, "git", "remote", "set-url", "origin", url); err != nil {
			return fmt.Errorf("git set-url failed: %v: %s", err, out)
		}
		if out, err := common.RunCommandDir(dest, "git", "reset", "--hard", "HEAD"); err != nil {
			return fmt.Errorf("git reset failed: %v: %s", err, out)
		}
		if out, err := common.RunCommandDir(dest, "git", "clean", "-fd"); err != nil {
			return fmt.Errorf("git clean failed: %v: %s", err, out)
		}
		return nil
	}

	if err := common.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	if out, err := common.RunCommand("git", "clone", "--depth", "1", "--recurse-submodules", url, dest); err != nil {
		return fmt.Errorf("git clone %s failed: %v: %s", url, err, out)
	}
	return nil
}

// populateBuildTree copies the files every EFI needs from the unpacked
// release into out/build/efi. Optional tools are copied when present.
func (f *Fetcher) populateBuildTree(filesDir string) error {
	required := []struct {
		src string
		dst string
	}{
		{filepath.Join(filesDir, "EFI", "BOOT", "BOOTx64.efi"), filepath.Join(f.Paths.BootDir, "BOOTx64.efi")},
		{filepath.Join(filesDir, "EFI", "OC", "OpenCore.efi"), filepath.Join(f.Paths.OCEFI, "OpenCore.efi")},
		{filepath.Join(filesDir, "EFI", "OC", "Drivers", "OpenRuntime.efi"), filepath.Join(f.Paths.OCDrivers, "OpenRuntime.efi")},
	}
	for _, file := range required {
		if _, err := os.Stat(file.src); err != nil {
			return fmt.Errorf("OpenCore release is missing %s", file.src)
		}
		if err := common.CopyFile(file.src, file.dst); err != nil {
			return err
		}
	}

	for _, tool := range []string{"OpenShell.efi", "CleanNvram.efi"} {
		src := filepath.Join(filesDir, "EFI", "OC", "Tools", tool)
		if _, err := os.Stat(src); err != nil {
			logrus.Debugf("Optional tool %s not in release", tool)
			continue
		}
		if err := common.CopyFile(src, filepath.Join(f.Paths.OCTools, tool)); err != nil {
			return err
		}
	}
	return nil
}

// FetchKexts downloads and installs every kext the manifest lists.
// Individual kext failures are logged and skipped so one broken release
// does not sink the whole fetch.
func (f *Fetcher) FetchKexts(force bool) error {
	if err := common.EnsureDir(f.Paths.KextCache); err != nil {
		return err
	}
	if err := common.EnsureDir(f.Paths.OCKexts); err != nil {
		return err
	}

	for _, k := range f.Manifest.Kexts {
		if err := f.fetchKext(k, force); err != nil {
			logrus.Warnf("Cannot fetch %s: %v", k.Name, err)
		}
	}
	return nil
}

func (f *Fetcher) fetchKext(k KextSource, force bool) error {
	buildType := strings.ToUpper(k.BuildType)
	if buildType == "" {
		buildType = "RELEASE"
	}

	zipPath := ""
	if !force {
		zipPath = cachedKextZip(f.Paths.KextCache, k.Name, buildType)
	}
	if zipPath == "" {
		rel, err := f.latestRelease(k.Repo)
		if err != nil {
			return err
		}
		asset := pickKextAsset(rel.Assets, buildType)
		if asset == nil {
			return fmt.Errorf("no %s zip asset in latest %s release", buildType, k.Repo)
		}
		zipPath = filepath.Join(f.Paths.KextCache, asset.Name)
		logrus.Infof("Downloading %s %s", k.Name, rel.TagName)
		if err := f.download(asset.DownloadURL, zipPath); err != nil {
			return err
		}
	} else {
		logrus.Infof("Using cached %s", filepath.Base(zipPath))
	}

	installed, err := f.extractKexts(zipPath)
	if err != nil {
		return err
	}
	if installed == 0 {
		return fmt.Errorf("no kext bundles in %s", filepath.Base(zipPath))
	}
	return nil
}

// cachedKextZip finds a previously downloaded archive for the kext, of
// the right build type, in the cache directory.
func cachedKextZip(cacheDir, kextName, buildType string) string {
	base := strings.TrimSuffix(kextName, ".kext")
	pattern := glob.MustCompile(base + "-*" + buildType + "*.zip")

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pattern.Match(e.Name()) {
			return filepath.Join(cacheDir, e.Name())
		}
	}
	return ""
}

// pickKextAsset chooses the release asset matching the requested build
// type. RELEASE accepts assets without an explicit build marker, since
// some projects only publish one zip.
func pickKextAsset(assets []releaseAsset, buildType string) *releaseAsset {
	for i, a := range assets {
		if !strings.HasSuffix(a.Name, ".zip") {
			continue
		}
		if strings.Contains(a.Name, "-"+buildType) {
			return &assets[i]
		}
	}
	if buildType == "RELEASE" {
		for i, a := range assets {
			if strings.HasSuffix(a.Name, ".zip") && !strings.Contains(a.Name, "-DEBUG") {
				return &assets[i]
			}
		}
	}
	return nil
}

// extractKexts unpacks an archive and installs every *.kext bundle it
// contains into the build tree, replacing existing copies. Bundles may
// sit at the archive root or under a Kexts/ directory; debug symbol
// bundles are never installed.
func (f *Fetcher) extractKexts(zipPath string) (int, error) {
	tmp, err := os.MkdirTemp(f.Paths.Out, "kext-extract-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmp)

	if out, err := common.RunCommand("unzip", "-o", "-q", zipPath, "-d", tmp); err != nil {
		return 0, fmt.Errorf("cannot unpack %s: %v: %s", filepath.Base(zipPath), err, out)
	}

	installed := 0
	err = filepath.WalkDir(tmp, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".dSYM") {
			return fs.SkipDir
		}
		if !strings.HasSuffix(name, ".kext") {
			return nil
		}
		target := filepath.Join(f.Paths.OCKexts, name)
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if err := common.CopyTree(path, target); err != nil {
			return err
		}
		logrus.Debugf("Installed %s", name)
		installed++
		return fs.SkipDir
	})
	if err != nil {
		return installed, err
	}
	return installed, nil
}

// FetchOCBinaryData clones the OcBinaryData repository and copies the
// manifest's driver list next to the OpenCore release drivers, where the
// EFI assembly step looks for them.
func (f *Fetcher) FetchOCBinaryData() error {
	bd := f.Manifest.OCBinaryData
	if bd.Repo == "" {
		return nil
	}

	repoDir := filepath.Join(f.Paths.Cache, "ocbinarydata", "ocbinarydata-repo")
	url := fmt.Sprintf("https://github.com/%s.git", bd.Repo)

	if _, err := os.Stat(filepath.Join(repoDir, ".git")); err == nil {
		if out, err := common.RunCommandDir(repoDir, "git", "remote", "set-url", "origin", url); err != nil {
			return fmt.Errorf("git set-url failed: %v: %s", err, out)
		}
		if out, err := common.RunCommandDir(repoDir, "git", "pull"); err != nil {
			return fmt.Errorf("git pull failed: %v: %s", err, out)
		}
	} else {
		if err := common.EnsureDir(filepath.Dir(repoDir)); err != nil {
			return err
		}
		if out, err := common.RunCommand("git", "clone", "--depth", "1", url, repoDir); err != nil {
			return fmt.Errorf("git clone %s failed: %v: %s", url, err, out)
		}
	}

	for _, d := range bd.Drivers {
		src := filepath.Join(repoDir, d.Path)
		if _, err := os.Stat(src); err != nil {
			logrus.Warnf("OcBinaryData has no %s", d.Path)
			continue
		}
		dst := filepath.Join(f.Paths.OpenCoreRelease, "Drivers", d.Name)
		if err := common.CopyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// FetchAMDVanilla clones the AMD vanilla patches repository and places
// patches.plist where the apply step expects it. The clone is full, not
// shallow, because the patch set tracks master rather than tags.
func (f *Fetcher) FetchAMDVanilla() error {
	av := f.Manifest.AMDVanilla
	if av.Repo == "" {
		return nil
	}

	repoDir := filepath.Join(f.Paths.Cache, "amd-vanilla", "amd-vanilla-repo")
	url := fmt.Sprintf("https://github.com/%s.git", av.Repo)

	if _, err := os.Stat(filepath.Join(repoDir, ".git")); err == nil {
		if out, err := common.RunCommandDir(repoDir, "git", "remote", "set-url", "origin", url); err != nil {
			return fmt.Errorf("git set-url failed: %v: %s", err, out)
		}
		if out, err := common.RunCommandDir(repoDir, "git", "fetch"); err != nil {
			return fmt.Errorf("git fetch failed: %v: %s", err, out)
		}
		if out, err := common.RunCommandDir(repoDir, "git", "reset", "--hard", "origin/master"); err != nil {
			return fmt.Errorf("git reset failed: %v: %s", err, out)
		}
	} else {
		if err := common.EnsureDir(filepath.Dir(repoDir)); err != nil {
			return err
		}
		if out, err := common.RunCommand("git", "clone", url, repoDir); err != nil {
			return fmt.Errorf("git clone %s failed: %v: %s", url, err, out)
		}
	}

	src := filepath.Join(repoDir, "patches.plist")
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%s has no patches.plist", av.Repo)
	}
	if err := common.CopyFile(src, f.Paths.AMDPatches); err != nil {
		return err
	}
	logrus.Infof("AMD vanilla patches copied to %s", f.Paths.AMDPatches)
	return nil
}

// ExtractLocalAssets installs kexts from archives dropped into the
// project's assets directory, for kexts that have no public release.
func (f *Fetcher) ExtractLocalAssets() error {
	matches, err := filepath.Glob(filepath.Join(f.Paths.Assets, "*.kext.zip"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		logrus.Infof("Extracting local asset %s", filepath.Base(m))
		if _, err := f.extractKexts(m); err != nil {
			logrus.Warnf("Cannot extract %s: %v", filepath.Base(m), err)
		}
	}
	return nil
}

type githubRelease struct {
	TagName string         `json:"tag_name"`
	Assets  []releaseAsset `json:"assets"`
}

type releaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

func (f *Fetcher) latestRelease(repo string) (*githubRelease, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", repo)
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("cannot parse release metadata for %s: %v", repo, err)
	}
	return &rel, nil
}

func (f *Fetcher) download(url, dest string) error {
	resp, err := f.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	if err := common.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("cannot download %s: %v", url, err)
	}
	return nil
}
