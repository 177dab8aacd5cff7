package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// Import statuses.
const (
	ImportValidated = "validated"
	ImportSkipped   = "skipped"
	ImportFailed    = "failed"
)

// ImportEntry is one connection configuration offered to ImportConnections.
type ImportEntry struct {
	Name   string        `json:"name"`
	Config driver.Config `json:"config"`
}

// ImportOutcome is the per-entry result of ImportConnections, in input order.
type ImportOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ImportConnections validates each entry's non-secret configuration without
// ever attempting to connect (no secret is supplied on this path). An entry
// whose name is already registered is skipped unless overwrite is set, in
// which case the existing connection is disconnected first. One outcome is
// returned per input entry, preserving input order, regardless of failures.
func (m *Manager) ImportConnections(ctx context.Context, entries []ImportEntry, overwrite bool) []ImportOutcome {
	outcomes := make([]ImportOutcome, 0, len(entries))

	for _, entry := range entries {
		outcomes = append(outcomes, m.importOne(ctx, entry, overwrite))
	}
	return outcomes
}

func (m *Manager) importOne(ctx context.Context, entry ImportEntry, overwrite bool) ImportOutcome {
	if entry.Name == "" {
		return ImportOutcome{Name: entry.Name, Status: ImportFailed, Reason: "name is required"}
	}

	if m.HasConnection(entry.Name) {
		if !overwrite {
			return ImportOutcome{Name: entry.Name, Status: ImportSkipped, Reason: "connection exists and overwrite is false"}
		}
		if err := m.Disconnect(ctx, entry.Name); err != nil {
			m.logger.Warn("overwrite disconnect reported error", "name", entry.Name, "error", err)
		}
	}

	canonical, _, err := m.registry.Resolve(entry.Config.Type)
	if err != nil {
		return ImportOutcome{Name: entry.Name, Status: ImportFailed, Reason: err.Error()}
	}

	if missing := missingImportFields(canonical, entry.Config); len(missing) > 0 {
		return ImportOutcome{
			Name:   entry.Name,
			Status: ImportFailed,
			Reason: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		}
	}
	return ImportOutcome{Name: entry.Name, Status: ImportValidated}
}

// missingImportFields checks the backend-required non-secret fields. Secrets
// are deliberately not required here; import is validate-only.
func missingImportFields(canonical string, cfg driver.Config) []string {
	var missing []string
	switch canonical {
	case "postgresql", "mysql":
		if cfg.Host == "" {
			missing = append(missing, "host")
		}
		if cfg.Database == "" {
			missing = append(missing, "database")
		}
		if cfg.User == "" {
			missing = append(missing, "user")
		}
	case "dynamodb":
		if cfg.Region == "" {
			missing = append(missing, "region")
		}
		if cfg.AccessKeyID == "" {
			missing = append(missing, "access_key_id")
		}
	default: // key-value backends need only a host
		if cfg.Host == "" {
			missing = append(missing, "host")
		}
	}
	return missing
}
