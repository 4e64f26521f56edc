package backup

import (
	"context"

	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/hass"
	"github.com/adamancini/entity-cleaner/internal/types"
)

// Source lists the backups known to one shape of the host's backup
// subsystem.
type Source interface {
	Kind() types.SourceKind
	Backups(ctx context.Context) ([]Record, error)
}

// Host is the subset of the host API the sources read from.
type Host interface {
	BackupInfo(ctx context.Context) (any, error)
	SupervisorAPI(ctx context.Context, endpoint, method string) (any, error)
	GetState(ctx context.Context, entityID string) (*hass.State, error)
}

// ManagerSource reads the core backup manager.
type ManagerSource struct {
	Host     Host
	MaxDepth int
}

func (s *ManagerSource) Kind() types.SourceKind { return types.SourceManager }

func (s *ManagerSource) Backups(ctx context.Context) ([]Record, error) {
	info, err := s.Host.BackupInfo(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Normalize(info, s.Kind(), s.MaxDepth), nil
}

// SupervisorSource reads the supervisor's backup list.
type SupervisorSource struct {
	Host     Host
	MaxDepth int
}

func (s *SupervisorSource) Kind() types.SourceKind { return types.SourceSupervisor }

func (s *SupervisorSource) Backups(ctx context.Context) ([]Record, error) {
	list, err := s.Host.SupervisorAPI(ctx, "/backups", "get")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Normalize(list, s.Kind(), s.MaxDepth), nil
}

// SensorSource reads the backups attribute of a diagnostic sensor entity.
// A missing entity or attribute yields no records.
type SensorSource struct {
	Host     Host
	EntityID string
	MaxDepth int
}

func (s *SensorSource) Kind() types.SourceKind { return types.SourceSensor }

func (s *SensorSource) Backups(ctx context.Context) ([]Record, error) {
	st, err := s.Host.GetState(ctx, s.EntityID)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	backups, ok := st.Attributes["backups"]
	if !ok || isEmpty(backups) {
		return nil, nil
	}
	return Normalize(backups, s.Kind(), s.MaxDepth), nil
}

// SourceOptions configures source detection.
type SourceOptions struct {
	// Kinds pins the sources to use. Empty means probe every known kind.
	Kinds        []types.SourceKind
	SensorEntity string
	MaxDepth     int
}

// NewSource builds the adapter for kind.
func NewSource(kind types.SourceKind, host Host, opts SourceOptions) (Source, error) {
	switch kind {
	case types.SourceManager:
		return &ManagerSource{Host: host, MaxDepth: opts.MaxDepth}, nil
	case types.SourceSupervisor:
		return &SupervisorSource{Host: host, MaxDepth: opts.MaxDepth}, nil
	case types.SourceSensor:
		return &SensorSource{Host: host, EntityID: opts.SensorEntity, MaxDepth: opts.MaxDepth}, nil
	}
	return nil, errors.NotValidf("backup source %q", kind)
}

// DetectSources returns the sources to read backups from. Pinned kinds are
// used as given; otherwise each known kind is probed once and kept if it
// answers.
func DetectSources(ctx context.Context, host Host, opts SourceOptions) ([]Source, error) {
	pinned := len(opts.Kinds) > 0
	kinds := opts.Kinds
	if !pinned {
		kinds = types.AllSourceKinds()
	}

	var sources []Source
	for _, kind := range kinds {
		src, err := NewSource(kind, host, opts)
		if err != nil {
			return nil, err
		}
		if !pinned {
			if ok, reason := probe(ctx, host, src, opts); !ok {
				logger.Debugf("backup source %s unavailable: %s", kind, reason)
				continue
			}
		}
		logger.Infof("using backup source %s", kind)
		sources = append(sources, src)
	}
	return sources, nil
}

func probe(ctx context.Context, host Host, src Source, opts SourceOptions) (bool, string) {
	if src.Kind() == types.SourceSensor {
		if _, err := host.GetState(ctx, opts.SensorEntity); err != nil {
			return false, err.Error()
		}
		return true, ""
	}
	if _, err := src.Backups(ctx); err != nil {
		return false, err.Error()
	}
	return true, ""
}
