package middleware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agorahq/agora/backend/internal/logger"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "agora-middleware-test")
	if err != nil {
		panic(err)
	}
	_ = logger.Initialize("error", filepath.Join(dir, "test.log"))
	code := m.Run()
	_ = logger.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
