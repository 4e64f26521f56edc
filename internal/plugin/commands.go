package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/juju/errors"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/types"
)

// Command names, without the domain prefix.
const (
	CmdGetCandidates = "get_candidates"
	CmdDelete        = "delete"
	CmdBackup        = "backup"
	CmdGetInfo       = "get_info"
)

// Commands returns the four entity cleaner commands bound to deps.
func Commands(deps Deps) []Command {
	return []Command{
		{Type: types.CommandType(CmdGetCandidates), RequireAdmin: true, Handler: getCandidates(deps.Candidates)},
		{Type: types.CommandType(CmdDelete), RequireAdmin: true, Handler: deleteEntities(deps.Deleter)},
		{Type: types.CommandType(CmdBackup), RequireAdmin: true, Handler: createBackup(deps.Backup)},
		{Type: types.CommandType(CmdGetInfo), RequireAdmin: true, Handler: getInfo(deps.Info)},
	}
}

func getCandidates(scanner Candidates) Handler {
	return func(ctx context.Context, req *Request) (any, error) {
		fields, err := decodeFields(req.Payload, "days")
		if err != nil {
			return nil, err
		}

		days := 0
		if raw, ok := fields["days"]; ok {
			if days, err = intField(raw, "days"); err != nil {
				return nil, err
			}
		}

		candidates, err := scanner.Candidates(ctx, days)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return map[string]any{"candidates": candidates}, nil
	}
}

func deleteEntities(deleter Deleter) Handler {
	return func(ctx context.Context, req *Request) (any, error) {
		fields, err := decodeFields(req.Payload, "entity_ids")
		if err != nil {
			return nil, err
		}

		raw, ok := fields["entity_ids"]
		if !ok {
			return nil, invalidFormat("required key not provided @ data['entity_ids']")
		}
		ids, err := stringListField(raw, "entity_ids")
		if err != nil {
			return nil, err
		}

		logger.Infof("%s requested removal of %d entities", req.User.Name, len(ids))
		return deleter.Delete(ctx, ids), nil
	}
}

func createBackup(trigger BackupTrigger) Handler {
	return func(ctx context.Context, req *Request) (any, error) {
		if _, err := decodeFields(req.Payload); err != nil {
			return nil, err
		}

		err := trigger.Run(ctx, req.User.Name)
		var berr *backup.Error
		if errors.As(err, &berr) {
			return nil, &CommandError{Code: berr.Code, Message: berr.Message}
		}
		if err != nil {
			return nil, &CommandError{Code: backup.CodeBackupFailed, Message: err.Error()}
		}
		return map[string]any{"success": true}, nil
	}
}

func getInfo(resolver BackupInfo) Handler {
	return func(ctx context.Context, req *Request) (any, error) {
		if _, err := decodeFields(req.Payload); err != nil {
			return nil, err
		}
		return resolver.LastBackups(ctx), nil
	}
}

func invalidFormat(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeInvalidFormat, Message: fmt.Sprintf(format, args...)}
}

// decodeFields splits a command message into its fields, rejecting any key
// other than id, type and allowed.
func decodeFields(payload json.RawMessage, allowed ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, invalidFormat("Message incorrectly formatted: %v", err)
	}

	known := map[string]bool{"id": true, "type": true}
	for _, k := range allowed {
		known[k] = true
	}

	var extra []string
	for k := range fields {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, invalidFormat("extra keys not allowed @ data['%s']", extra[0])
	}
	return fields, nil
}

func intField(raw json.RawMessage, key string) (int, error) {
	var n int
	if isNull(raw) {
		return 0, invalidFormat("expected int for dictionary value @ data['%s']", key)
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, invalidFormat("expected int for dictionary value @ data['%s']", key)
	}
	return n, nil
}

func stringListField(raw json.RawMessage, key string) ([]string, error) {
	var items []json.RawMessage
	if isNull(raw) {
		return nil, invalidFormat("expected list for dictionary value @ data['%s']", key)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalidFormat("expected list for dictionary value @ data['%s']", key)
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if isNull(item) {
			return nil, invalidFormat("expected str @ data['%s'][%d]", key, i)
		}
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, invalidFormat("expected str @ data['%s'][%d]", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
