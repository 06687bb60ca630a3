package target

import (
	"fmt"
	"os"
	"strconv"
)

// Announce delivers url to the parent harness. Outside the harness
// (EnvAnnounceFD unset) it returns false and does nothing.
func Announce(url string) (bool, error) {
	raw := os.Getenv(EnvAnnounceFD)
	if raw == "" {
		return false, nil
	}
	fd, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", EnvAnnounceFD, raw, err)
	}

	f := os.NewFile(uintptr(fd), "announce")
	if f == nil {
		return false, fmt.Errorf("invalid announce descriptor %d", fd)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, url); err != nil {
		return false, fmt.Errorf("announce url: %w", err)
	}
	return true, nil
}
