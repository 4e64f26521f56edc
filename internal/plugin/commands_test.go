package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/entity-cleaner/internal/backup"
	"github.com/adamancini/entity-cleaner/internal/cleaner"
)

func handlerFor(t *testing.T, deps Deps, name string) Handler {
	t.Helper()
	for _, cmd := range Commands(deps) {
		if cmd.Type == "entity_cleaner/"+name {
			return cmd.Handler
		}
	}
	t.Fatalf("no command %s", name)
	return nil
}

func request(payload string) *Request {
	return &Request{ID: 1, User: User{Name: "admin", IsAdmin: true}, Payload: json.RawMessage(payload)}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, code, cerr.Code)
}

func TestGetCandidates(t *testing.T) {
	deps, scanner, _, _ := testDeps()
	h := handlerFor(t, deps, CmdGetCandidates)

	res, err := h(context.Background(), request(`{"id":1,"type":"entity_cleaner/get_candidates","days":5}`))
	require.NoError(t, err)
	assert.Equal(t, 5, scanner.days)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates":[{
		"entity_id":"switch.c","name":"","platform":"","status":"orphaned",
		"last_changed":null,"days_unavailable":9999}]}`, string(data))
}

func TestGetCandidatesDefaultDays(t *testing.T) {
	deps, scanner, _, _ := testDeps()
	scanner.days = 42

	_, err := handlerFor(t, deps, CmdGetCandidates)(context.Background(), request(`{"id":1,"type":"entity_cleaner/get_candidates"}`))
	require.NoError(t, err)
	assert.Equal(t, 0, scanner.days)
}

func TestGetCandidatesInvalid(t *testing.T) {
	for _, payload := range []string{
		`{"id":1,"type":"t","days":"5"}`,
		`{"id":1,"type":"t","days":5.5}`,
		`{"id":1,"type":"t","days":null}`,
		`{"id":1,"type":"t","days":5,"extra":true}`,
		`[1,2]`,
	} {
		t.Run(payload, func(t *testing.T) {
			deps, scanner, _, _ := testDeps()
			_, err := handlerFor(t, deps, CmdGetCandidates)(context.Background(), request(payload))
			requireCode(t, err, CodeInvalidFormat)
			assert.Zero(t, scanner.calls)
		})
	}
}

func TestGetCandidatesScanFailure(t *testing.T) {
	deps, scanner, _, _ := testDeps()
	scanner.err = errors.New("host went away")

	_, err := handlerFor(t, deps, CmdGetCandidates)(context.Background(), request(`{"id":1,"type":"t"}`))
	require.Error(t, err)
	var cerr *CommandError
	assert.False(t, errors.As(err, &cerr))
}

func TestDelete(t *testing.T) {
	deps, _, deleter, _ := testDeps()

	res, err := handlerFor(t, deps, CmdDelete)(context.Background(), request(`{"id":1,"type":"t","entity_ids":["sensor.b","switch.c"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"sensor.b", "switch.c"}, deleter.ids)

	result, ok := res.(*cleaner.DeletionResult)
	require.True(t, ok)
	assert.Len(t, result.Deleted, 2)
}

func TestDeleteInvalid(t *testing.T) {
	for _, payload := range []string{
		`{"id":1,"type":"t"}`,
		`{"id":1,"type":"t","entity_ids":"sensor.b"}`,
		`{"id":1,"type":"t","entity_ids":[1]}`,
		`{"id":1,"type":"t","entity_ids":null}`,
		`{"id":1,"type":"t","entity_ids":["a"],"days":3}`,
	} {
		t.Run(payload, func(t *testing.T) {
			deps, _, deleter, _ := testDeps()
			_, err := handlerFor(t, deps, CmdDelete)(context.Background(), request(payload))
			requireCode(t, err, CodeInvalidFormat)
			assert.Nil(t, deleter.ids)
		})
	}
}

func TestDeleteEmptyList(t *testing.T) {
	deps, _, deleter, _ := testDeps()

	_, err := handlerFor(t, deps, CmdDelete)(context.Background(), request(`{"id":1,"type":"t","entity_ids":[]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{}, deleter.ids)
}

func TestBackup(t *testing.T) {
	deps, _, _, trigger := testDeps()

	res, err := handlerFor(t, deps, CmdBackup)(context.Background(), request(`{"id":1,"type":"t"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, res)
	assert.Equal(t, "admin", trigger.user)
}

func TestBackupErrors(t *testing.T) {
	deps, _, _, trigger := testDeps()
	h := handlerFor(t, deps, CmdBackup)

	trigger.err = backup.ErrNoBackupService
	_, err := h(context.Background(), request(`{"id":1,"type":"t"}`))
	requireCode(t, err, backup.CodeNoBackupService)

	trigger.err = &backup.Error{Code: backup.CodeBackupFailed, Message: "disk full"}
	_, err = h(context.Background(), request(`{"id":1,"type":"t"}`))
	requireCode(t, err, backup.CodeBackupFailed)
	assert.Contains(t, err.Error(), "disk full")

	trigger.err = errors.New("connection reset")
	_, err = h(context.Background(), request(`{"id":1,"type":"t"}`))
	requireCode(t, err, backup.CodeBackupFailed)
}

func TestGetInfo(t *testing.T) {
	deps, _, _, _ := testDeps()

	res, err := handlerFor(t, deps, CmdGetInfo)(context.Background(), request(`{"id":1,"type":"t"}`))
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_backup_auto":"2024-01-01T00:00:00","last_backup_manual":null}`, string(data))
}
