package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"octogrowl/internal/config"
)

// loadConfig parses path. A missing file yields (nil, nil) when optional.
func loadConfig(path string, optional bool) (*config.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("no config path given")
	}
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
