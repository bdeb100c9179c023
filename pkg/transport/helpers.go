package transport

import (
	"fmt"
	"os"
	"strings"

	uuid "github.com/satori/go.uuid"
)

const clientIDCharWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_"

func sanitizeClientID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if strings.ContainsRune(clientIDCharWhitelist, r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// NewClientID builds a broker-safe client identifier out of the local host
// name, the given prefix and a random suffix.
func NewClientID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewV4().String(), "-", "")[:12]
	hostname, err := os.Hostname()
	if err != nil || len(hostname) == 0 {
		return sanitizeClientID(fmt.Sprintf("%s_%s", prefix, suffix))
	}
	return sanitizeClientID(fmt.Sprintf("%s_%s_%s", hostname, prefix, suffix))
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
