package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/mapkit/internal/config"
	"github.com/woozymasta/mapkit/internal/engine"
	"github.com/woozymasta/mapkit/internal/mapctl"
)

// maxSceneSize caps downloaded scene files.
const maxSceneSize = 8 << 20

// fetchScene reads a scene from a local path or an http(s) URL.
func fetchScene(ctx context.Context, client *http.Client, path string) (string, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read scene: %w", err)
		}
		return string(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download scene: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download scene %s: status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSceneSize))
	if err != nil {
		return "", fmt.Errorf("download scene: %w", err)
	}
	return string(data), nil
}

// loadScene loads sceneYAML with the configured updates and waits for the
// ready callback.
func loadScene(c *mapctl.Controller, sceneYAML string, m *config.Map, timeout time.Duration) error {
	ready := make(chan *engine.SceneError, 1)
	c.SetSceneReadyListener(func(_ int, err *engine.SceneError) {
		select {
		case ready <- err:
		default:
		}
	})
	defer c.SetSceneReadyListener(nil)

	root := ""
	if m.Scene != "" {
		root = m.Scene[:strings.LastIndex(m.Scene, "/")+1]
	}
	if _, err := c.LoadSceneYAML(sceneYAML, root, m.SceneUpdates...); err != nil {
		return err
	}

	select {
	case sErr := <-ready:
		if sErr != nil {
			return sErr
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scene not ready after %s", timeout)
	}
}
