package checkpoint_test

import (
	"testing"

	"github.com/flemzord/runstash/internal/checkpoint"
	"github.com/flemzord/runstash/internal/checkpoint/checkpointtest"
)

func TestMemoryBackend(t *testing.T) {
	checkpointtest.RunBackendSuite(t, func(*testing.T) checkpoint.Backend {
		return checkpoint.NewMemoryBackend()
	})
}
