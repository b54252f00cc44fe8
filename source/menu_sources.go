package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"pricecmp/model"
)

// HTTPMenus fetches menus from the platforms' public endpoints. Templates
// carry a {code} placeholder for the vendor code.
type HTTPMenus struct {
	templates map[model.Platform]string
	client    *http.Client
	log       *slog.Logger
}

func NewHTTPMenus(snappfoodURL, tapsifoodURL string, client *http.Client, logger *slog.Logger) *HTTPMenus {
	return &HTTPMenus{
		templates: map[model.Platform]string{
			model.PlatformSnappfood: snappfoodURL,
			model.PlatformTapsifood: tapsifoodURL,
		},
		client: client,
		log:    logger,
	}
}

func (m *HTTPMenus) Menu(ctx context.Context, platform model.Platform, vendorCode string) (map[int64]model.Product, error) {
	tmpl, ok := m.templates[platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	if vendorCode == "" {
		return nil, fmt.Errorf("%s menu: empty vendor code", platform)
	}
	target := strings.ReplaceAll(tmpl, "{code}", url.PathEscape(vendorCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s menu: %w", platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s menu: %w", platform, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s menu returned %d: %s", platform, resp.StatusCode, truncate(body))
	}
	return ParseMenu(platform, body, m.log)
}

// FileMenus reads menus saved as <dir>/<platform>/<code>.json.
type FileMenus struct {
	dir string
	log *slog.Logger
}

func NewFileMenus(dir string, logger *slog.Logger) *FileMenus {
	return &FileMenus{dir: dir, log: logger}
}

func (m *FileMenus) Menu(_ context.Context, platform model.Platform, vendorCode string) (map[int64]model.Product, error) {
	if vendorCode == "" || strings.ContainsAny(vendorCode, `/\.`) {
		return nil, fmt.Errorf("%s menu: invalid vendor code %q", platform, vendorCode)
	}
	path := filepath.Join(m.dir, string(platform), vendorCode+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s menu %s: %w", platform, vendorCode, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s menu: %w", platform, err)
	}
	return ParseMenu(platform, data, m.log)
}

// Watch reports writes, creates, removals and renames of menu files until
// ctx is done. Platform directories are watched one level deep.
func (m *FileMenus) Watch(ctx context.Context, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create menu watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("watch %s: %w", m.dir, err)
	}
	for _, p := range []model.Platform{model.PlatformSnappfood, model.PlatformTapsifood} {
		sub := filepath.Join(m.dir, string(p))
		if _, err := os.Stat(sub); err == nil {
			if err := watcher.Add(sub); err != nil {
				m.log.Warn("menu watch failed", "dir", sub, "err", err)
			}
		}
	}

	const interesting = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&interesting == 0 {
				continue
			}
			// A platform directory created after startup.
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			m.log.Debug("menu file changed", "path", event.Name, "op", event.Op.String())
			onChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("menu watcher error", "err", err)
		}
	}
}
