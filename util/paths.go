package util

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the data directory path
func GetDataDir() string {
	if envDir := os.Getenv("BT_OBEX_DIR"); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".bt-obex-data")
}

// GetSocketDir returns the directory where Unix domain sockets are stored
func GetSocketDir() string {
	socketDir := filepath.Join(GetDataDir(), "sockets")
	// Ensure the directory exists
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		panic(err)
	}
	return socketDir
}

// GetProgressDBPath returns the path of the persisted transfer progress database
func GetProgressDBPath() string {
	if err := os.MkdirAll(GetDataDir(), 0755); err != nil {
		panic(err)
	}
	return filepath.Join(GetDataDir(), "progress.db")
}
