package services

import (
	"os"
	"testing"

	"github.com/curalab/fedbench/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}
