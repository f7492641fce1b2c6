package utils

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const DEFAULT_REGION = "local"

const metadataZoneURL = "http://metadata.google.internal/computeMetadata/v1/instance/zone"

var zoneSuffix = regexp.MustCompile(`-[a-z]$`)

// Region returns the region of the GCP machine we run on, or DEFAULT_REGION
// when the metadata server is unreachable.
func Region() (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, metadataZoneURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Add("Metadata-Flavor", "Google")
	resp, err := client.Do(req)
	if err != nil {
		// metadata is only reachable from inside gcp
		return DEFAULT_REGION, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return regionFromZone(string(body))
}

// regionFromZone turns "projects/<n>/zones/europe-west3-a" into "europe-west3".
func regionFromZone(response string) (string, error) {
	parts := strings.Split(response, "/")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid response format: %s", response)
	}
	return zoneSuffix.ReplaceAllString(strings.TrimSpace(parts[3]), ""), nil
}

// RegionOrDefault resolves the region unless one is configured.
func RegionOrDefault(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return Region()
}
