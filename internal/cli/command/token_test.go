package command

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/norlun/tokengate-go/internal/core/domain"
)

func commandFlags(t *testing.T, cmd *cli.Command) map[string]bool {
	t.Helper()
	names := make(map[string]bool)
	for _, f := range cmd.Flags {
		names[f.Names()[0]] = true
	}
	return names
}

func TestIssueCommand_Structure(t *testing.T) {
	cmd := IssueCommand()
	if cmd.Name != "issue" {
		t.Errorf("Name = %q, want %q", cmd.Name, "issue")
	}

	flags := commandFlags(t, cmd)
	if !flags["payload"] {
		t.Error("issue should have --payload flag")
	}
	if !flags["user"] {
		t.Error("issue should have --user flag")
	}
}

func TestValidateCommand_Structure(t *testing.T) {
	cmd := ValidateCommand()
	if cmd.Name != "validate" {
		t.Errorf("Name = %q, want %q", cmd.Name, "validate")
	}
	if !commandFlags(t, cmd)["renew"] {
		t.Error("validate should have --renew flag")
	}
}

func TestRevokeCommands_Structure(t *testing.T) {
	if !commandFlags(t, RevokeCommand())["force"] {
		t.Error("revoke should have --force flag")
	}
	if !commandFlags(t, RevokeUserCommand())["force"] {
		t.Error("revoke-user should have --force flag")
	}
	if RevokeUserCommand().Name != "revoke-user" {
		t.Error("revoke-user command misnamed")
	}
}

func TestTokenIssue_RequiresPayload(t *testing.T) {
	cfgPath := writeTestConfig(t, "memory")
	c := makeTestContext(t, cfgPath, nil, nil)

	if err := tokenIssue(c); err == nil {
		t.Error("issue without --payload or --user should fail")
	}
}

func TestTokenIssue_RejectsBadJSON(t *testing.T) {
	cfgPath := writeTestConfig(t, "memory")
	c := makeTestContext(t, cfgPath, map[string]any{"payload": "{not json"}, nil)

	err := tokenIssue(c)
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("issue with bad JSON = %v, want ErrInvalidPayload", err)
	}
}

func TestTokenValidate_RequiresArg(t *testing.T) {
	cfgPath := writeTestConfig(t, "memory")
	c := makeTestContext(t, cfgPath, nil, nil)

	if err := tokenValidate(c); err == nil {
		t.Error("validate without a token argument should fail")
	}
}

func TestTokenValidate_NotFound(t *testing.T) {
	cfgPath := writeTestConfig(t, "memory")
	c := makeTestContext(t, cfgPath, nil, []string{"tok_cli_missing"})

	err := tokenValidate(c)
	if !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("validate unknown token = %v, want ErrTokenNotFound", err)
	}
}

func TestTokenLifecycle_Badger(t *testing.T) {
	cfgPath := writeTestConfig(t, "badger")

	// Issue a token for alice. The badger directory persists, so later
	// invocations see it.
	issue := makeTestContext(t, cfgPath, map[string]any{"user": "alice"}, nil)
	if err := tokenIssue(issue); err != nil {
		t.Fatalf("issue: %v", err)
	}

	store, closeStore := openTestStore(t, cfgPath)
	tokens := storedTokens(t, store)
	closeStore()
	if len(tokens) != 1 {
		t.Fatalf("stored tokens = %d, want 1", len(tokens))
	}
	tokenValue := tokens[0]

	// Validate with renewal.
	validate := makeTestContext(t, cfgPath, map[string]any{"renew": true, "output": "json"}, []string{tokenValue})
	if err := tokenValidate(validate); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// Revoke it.
	revoke := makeTestContext(t, cfgPath, map[string]any{"force": true}, []string{tokenValue})
	if err := tokenRevoke(revoke); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	store, closeStore = openTestStore(t, cfgPath)
	tokens = storedTokens(t, store)
	closeStore()
	if len(tokens) != 0 {
		t.Errorf("stored tokens after revoke = %d, want 0", len(tokens))
	}

	// Revoking again is idempotent.
	again := makeTestContext(t, cfgPath, map[string]any{"force": true}, []string{tokenValue})
	if err := tokenRevoke(again); err != nil {
		t.Errorf("second revoke: %v", err)
	}
}

func TestTokenRevokeUser_Badger(t *testing.T) {
	cfgPath := writeTestConfig(t, "badger")

	store, closeStore := openTestStore(t, cfgPath)
	seedRecord(t, store, "tok_cli_alice_1", "alice", 5000)
	seedRecord(t, store, "tok_cli_alice_2", "alice", 5001)
	seedRecord(t, store, "tok_cli_bob_1", "bob", 5002)
	closeStore()

	c := makeTestContext(t, cfgPath, map[string]any{"force": true}, []string{"alice"})
	if err := tokenRevokeUser(c); err != nil {
		t.Fatalf("revoke-user: %v", err)
	}

	store, closeStore = openTestStore(t, cfgPath)
	tokens := storedTokens(t, store)
	closeStore()
	if len(tokens) != 1 || tokens[0] != "tok_cli_bob_1" {
		t.Errorf("remaining tokens = %v, want [tok_cli_bob_1]", tokens)
	}
}

func TestTokenRevokeUser_RequiresArg(t *testing.T) {
	cfgPath := writeTestConfig(t, "memory")
	c := makeTestContext(t, cfgPath, map[string]any{"force": true}, nil)

	if err := tokenRevokeUser(c); err == nil {
		t.Error("revoke-user without a user argument should fail")
	}
}
