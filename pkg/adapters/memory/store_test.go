package memory_test

import (
	"testing"

	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/aretw0/flowra/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunStatusStoreContract(t, func(t *testing.T) ports.StatusStore {
		return memory.NewStore()
	})
}
