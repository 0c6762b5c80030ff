package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlobKey builds the storage key for an uploaded audio blob:
// YYYYMMDD_HHMMSS_{uuid}{ext}. The timestamp prefix keeps object
// listings roughly chronological; the uuid guarantees uniqueness.
func BlobKey(now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", now.UTC().Format("20060102_150405"), uuid.NewString(), ext)
}
