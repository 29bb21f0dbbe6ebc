package binary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// receiptVersion is the schema version written into every receipt.
const receiptVersion = 1

// Receipt records how a cached binary was provisioned. It is informational:
// the cache probe never reads it.
type Receipt struct {
	Version         int       `json:"version"`
	ID              string    `json:"id"`
	Artifact        string    `json:"artifact"`
	ArtifactVersion string    `json:"artifact_version"`
	Platform        string    `json:"platform"`
	URL             string    `json:"url"`
	Path            string    `json:"path"`
	SHA256          string    `json:"sha256"`
	Size            int64     `json:"size"`
	Verified        string    `json:"verified"`
	ProvisionedAt   time.Time `json:"provisioned_at"`
}

// ReceiptPath returns where the receipt of a descriptor is stored.
func ReceiptPath(d *Descriptor) string {
	return d.FinalPath + ".json"
}

// NewReceipt describes the binary now present at d.FinalPath.
func NewReceipt(d *Descriptor, verified VerificationMethod) (*Receipt, error) {
	info, err := os.Stat(d.FinalPath)
	if err != nil {
		return nil, fmt.Errorf("stat binary: %w", err)
	}
	sum, err := calculateSHA256(d.FinalPath)
	if err != nil {
		return nil, fmt.Errorf("hash binary: %w", err)
	}

	return &Receipt{
		Version:         receiptVersion,
		ID:              uuid.New().String(),
		Artifact:        d.Name,
		ArtifactVersion: d.Version,
		Platform:        d.Key.String(),
		URL:             d.URL,
		Path:            d.FinalPath,
		SHA256:          sum,
		Size:            info.Size(),
		Verified:        verified.String(),
		ProvisionedAt:   time.Now().UTC(),
	}, nil
}

// Save writes the receipt to path atomically.
// Uses write-then-rename pattern for atomicity.
func (r *Receipt) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create receipt directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temporary receipt file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename receipt file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}

// LoadReceipt reads a receipt from disk.
func LoadReceipt(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}
