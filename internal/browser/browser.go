package browser

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// start launches the platform opener; swapped in tests.
var start = startCommand

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open shows target in the default browser. target is an http(s) URL or a
// path to an existing local file, which is opened as a file:// URI.
func Open(target string) error {
	uri, err := resolve(target)
	if err != nil {
		return err
	}

	switch runtime.GOOS {
	case "darwin":
		return start("open", uri)
	case "windows":
		// rundll32 avoids shell interpretation of the URI.
		return start("rundll32", "url.dll,FileProtocolHandler", uri)
	default:
		return start("xdg-open", uri)
	}
}

func resolve(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty target")
	}
	if u, err := url.Parse(target); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("refusing to open URL with scheme %q (only http/https allowed)", u.Scheme)
		}
		return target, nil
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", target, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("open %s: is a directory", target)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
