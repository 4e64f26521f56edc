// Package types provides type-safe constants shared across entity-cleaner.
//
// Enumerated values that appear on the wire (candidate status, backup
// service names, backup source kinds) live here together with their
// validation helpers so the command layer and the config loader agree on
// them.
package types

import (
	"fmt"
	"strings"
)

const (
	// Domain is the command namespace registered with the dispatcher.
	Domain = "entity_cleaner"

	// AutoBackupName tags backups created by entity-cleaner so later
	// lookups can tell them apart from manual ones.
	AutoBackupName = "Entity Cleaner Auto-Backup"

	// OrphanedAge is the age reported for registry entries without live state.
	OrphanedAge = 9999
	// NotEvaluatedAge is the age reported when no last-changed time exists.
	NotEvaluatedAge = -1

	// StateUnavailable and StateUnknown are the host's sentinel state values.
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// EntityStatus classifies a registry entry during a candidate scan.
type EntityStatus string

const (
	// StatusActive marks an entity reporting a regular state.
	StatusActive EntityStatus = "active"
	// StatusOrphaned marks a registry entry with no live state.
	StatusOrphaned EntityStatus = "orphaned"
	// StatusUnavailable marks an entity whose state is "unavailable".
	StatusUnavailable EntityStatus = "unavailable"
	// StatusUnknown marks an entity whose state is "unknown".
	StatusUnknown EntityStatus = "unknown"
)

// AllEntityStatuses returns all valid entity statuses.
func AllEntityStatuses() []EntityStatus {
	return []EntityStatus{StatusActive, StatusOrphaned, StatusUnavailable, StatusUnknown}
}

// Validate checks if the EntityStatus is a valid value.
func (s EntityStatus) Validate() error {
	switch s {
	case StatusActive, StatusOrphaned, StatusUnavailable, StatusUnknown:
		return nil
	case "":
		return fmt.Errorf("entity status is required")
	default:
		return fmt.Errorf("invalid entity status '%s' (must be active, orphaned, unavailable, or unknown)", s)
	}
}

// String returns the string representation of the EntityStatus.
func (s EntityStatus) String() string {
	return string(s)
}

// IsStale returns true for statuses that make an entity a removal candidate.
func (s EntityStatus) IsStale() bool {
	return s == StatusOrphaned || s == StatusUnavailable || s == StatusUnknown
}

// StatusFromState maps a host state value to an EntityStatus.
func StatusFromState(value string) EntityStatus {
	switch value {
	case StateUnavailable:
		return StatusUnavailable
	case StateUnknown:
		return StatusUnknown
	default:
		return StatusActive
	}
}

// BackupService identifies a host service able to create a backup.
type BackupService string

const (
	// BackupServiceFull is the supervisor full-system backup.
	BackupServiceFull BackupService = "hassio.backup_full"
	// BackupServicePartial is the supervisor partial backup.
	BackupServicePartial BackupService = "hassio.backup_partial"
	// BackupServiceCreate is the core backup integration's generic create.
	BackupServiceCreate BackupService = "backup.create"
)

// AllBackupServices returns the backup services in trigger priority order.
func AllBackupServices() []BackupService {
	return []BackupService{BackupServiceFull, BackupServicePartial, BackupServiceCreate}
}

// Validate checks if the BackupService is a valid value.
func (b BackupService) Validate() error {
	switch b {
	case BackupServiceFull, BackupServicePartial, BackupServiceCreate:
		return nil
	case "":
		return fmt.Errorf("backup service is required")
	default:
		return fmt.Errorf("invalid backup service '%s'", b)
	}
}

// String returns the string representation of the BackupService.
func (b BackupService) String() string {
	return string(b)
}

// Domain returns the service domain, e.g. "hassio".
func (b BackupService) Domain() string {
	domain, _, _ := strings.Cut(string(b), ".")
	return domain
}

// Service returns the service name within its domain, e.g. "backup_full".
func (b BackupService) Service() string {
	_, service, _ := strings.Cut(string(b), ".")
	return service
}

// SourceKind identifies one known shape of the host's backup subsystem.
type SourceKind string

const (
	// SourceManager is the core backup manager queried by command.
	SourceManager SourceKind = "manager"
	// SourceSupervisor is the supervisor's backup listing.
	SourceSupervisor SourceKind = "supervisor"
	// SourceSensor is a sensor entity exposing backups as an attribute.
	SourceSensor SourceKind = "sensor"
)

// AllSourceKinds returns all source kinds in probe order.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceManager, SourceSupervisor, SourceSensor}
}

// Validate checks if the SourceKind is a valid value.
func (k SourceKind) Validate() error {
	switch k {
	case SourceManager, SourceSupervisor, SourceSensor:
		return nil
	case "":
		return fmt.Errorf("backup source kind is required")
	default:
		return fmt.Errorf("invalid backup source '%s' (must be manager, supervisor, or sensor)", k)
	}
}

// String returns the string representation of the SourceKind.
func (k SourceKind) String() string {
	return string(k)
}

// ParseSourceKind parses a string into a SourceKind.
// Returns an error if the string is not a valid source kind.
func ParseSourceKind(s string) (SourceKind, error) {
	sk := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	if err := sk.Validate(); err != nil {
		return "", err
	}
	return sk, nil
}

// CommandType returns the fully qualified command type for name,
// e.g. "entity_cleaner/get_candidates".
func CommandType(name string) string {
	return Domain + "/" + name
}
