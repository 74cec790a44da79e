package paymentsessions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceEntropyChars = 16

// NewReference builds a provider-facing reference of the form
// <prefix>-<unix millis>-<random hex>. The random part comes from a v4 UUID.
func NewReference(prefix string, now time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "VG"
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), random[:referenceEntropyChars])
}
