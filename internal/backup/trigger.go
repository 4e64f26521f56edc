package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/types"
)

// Error codes reported to callers of the backup command.
const (
	CodeNoBackupService = "no_backup_service"
	CodeBackupFailed    = "backup_failed"
)

// NotificationID is the persistent notification the trigger reports to.
const NotificationID = "entity_cleaner_backup"

// Error is a backup failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrNoBackupService is returned when the host offers no backup service.
var ErrNoBackupService = &Error{
	Code:    CodeNoBackupService,
	Message: "No backup service (hassio/backup) found.",
}

// ServiceCaller is the subset of the host API the trigger needs.
type ServiceCaller interface {
	HasService(ctx context.Context, domain, service string) (bool, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// Trigger starts host backups tagged with a fixed name.
type Trigger struct {
	host ServiceCaller
	name string
}

// NewTrigger creates a trigger whose backups are named name.
func NewTrigger(host ServiceCaller, name string) *Trigger {
	if name == "" {
		name = types.AutoBackupName
	}
	return &Trigger{host: host, name: name}
}

// Available returns the backup services the host offers, in priority order.
func (t *Trigger) Available(ctx context.Context) ([]types.BackupService, error) {
	var available []types.BackupService
	for _, svc := range types.AllBackupServices() {
		ok, err := t.host.HasService(ctx, svc.Domain(), svc.Service())
		if err != nil {
			return nil, errors.Annotatef(err, "checking for %s", svc)
		}
		if ok {
			available = append(available, svc)
		}
	}
	return available, nil
}

// Run starts a backup with the highest-priority available service and waits
// for it to finish. requestedBy names the user shown in the notification.
func (t *Trigger) Run(ctx context.Context, requestedBy string) error {
	logger.Infof("backup requested by %q", requestedBy)

	available, err := t.Available(ctx)
	if err != nil {
		return &Error{Code: CodeBackupFailed, Message: err.Error()}
	}
	if len(available) == 0 {
		logger.Warningf("no backup service available")
		return ErrNoBackupService
	}

	svc := available[0]
	logger.Infof("calling %s", svc)
	callErr := t.host.CallService(ctx, svc.Domain(), svc.Service(), t.serviceData(svc))
	if callErr != nil {
		logger.Errorf("backup via %s failed: %v", svc, callErr)
	}

	t.notify(ctx, available, svc, requestedBy, callErr)

	if callErr != nil {
		return &Error{Code: CodeBackupFailed, Message: errorMessage(callErr)}
	}
	return nil
}

// errorMessage returns the text a host error was raised with.
func errorMessage(err error) string {
	var herr *hass.Error
	if errors.As(err, &herr) {
		return herr.Message
	}
	return err.Error()
}

func (t *Trigger) serviceData(svc types.BackupService) map[string]any {
	data := map[string]any{"name": t.name}
	if svc == types.BackupServicePartial {
		data["homeassistant"] = true
	}
	return data
}

func (t *Trigger) notify(ctx context.Context, available []types.BackupService, used types.BackupService, user string, callErr error) {
	names := make([]string, len(available))
	for i, svc := range available {
		names[i] = svc.String()
	}
	if user == "" {
		user = "unknown"
	}

	title := "Entity Cleaner Backup"
	result := "The backup service confirmed completion."
	if callErr != nil {
		title = "Entity Cleaner Backup Failed"
		result = "Error: " + errorMessage(callErr)
	}

	msg := fmt.Sprintf("Available services: %s\nUsed: %s\nRequested by: %s\n%s",
		strings.Join(names, ", "), used, user, result)

	err := t.host.CallService(ctx, "persistent_notification", "create", map[string]any{
		"title":           title,
		"message":         msg,
		"notification_id": NotificationID,
	})
	if err != nil {
		logger.Warningf("failed to create backup notification: %v", err)
	}
}
