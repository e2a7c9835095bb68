package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "expire", "token", "member"}, names)
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"token", "--user-id", "3", "--role", "janitor"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestTokenCommand_RequiresUserID(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"token", "--role", "member"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-id")
}

func TestMemberUpsert_RejectsUnknownStatus(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"member", "upsert", "--id", "9", "--username", "nina", "--status", "BANNED"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
