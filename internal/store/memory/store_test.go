package memory

import (
	"testing"

	"qms/dispatch-service/internal/store"
	"qms/dispatch-service/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.RecordStore {
		return NewStore()
	})
}
