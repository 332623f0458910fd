package persist

// file.go wraps the stream-oriented Plugin contract in the path-oriented
// convenience surface hosts actually call: save a world to a file, load a
// world back, with optional format auto-detection across several plugins
// via CanLoad. Writes go through a temp file renamed into place so an
// interrupted save never leaves a half-written file under the target name;
// a torn write instead fails the footer check of whatever was there before.

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fenwick-systems/pecs"
)

// SaveFile encodes w to path using plugin.
func SaveFile(path string, w *pecs.World, plugin Plugin, filters ...Filter) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persist: creating temp save file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := plugin.Save(w, bw, filters...); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: flushing save file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: syncing save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: closing save file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("persist: renaming save file into place: %w", err)
	}
	return nil
}

// LoadFile decodes a world from path. With one plugin given, that plugin
// loads directly; with several, the first whose CanLoad recognizes the
// stream prefix wins. Zero plugins is an error rather than an implicit
// default, since the caller controls which formats their process accepts.
func LoadFile(path string, plugins ...Plugin) (*pecs.World, error) {
	if len(plugins) == 0 {
		return nil, fmt.Errorf("persist: LoadFile requires at least one plugin")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: opening save file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	plugin, err := detectPlugin(br, plugins)
	if err != nil {
		return nil, err
	}
	return plugin.Load(br)
}

// detectPlugin picks the plugin whose CanLoad recognizes in's prefix. The
// shared bufio.Reader is what makes detection non-destructive: CanLoad
// peeks without consuming, so the winning plugin's Load starts from byte
// zero.
func detectPlugin(in *bufio.Reader, plugins []Plugin) (Plugin, error) {
	if len(plugins) == 1 {
		return plugins[0], nil
	}
	for _, p := range plugins {
		if p.CanLoad(in) {
			return p, nil
		}
	}
	return nil, &CorruptedDataError{Reason: "no registered plugin recognizes the stream"}
}
